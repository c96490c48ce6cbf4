package claims

import "errors"

var (
	ErrUserIDRequired = errors.New("user ID is required")
	ErrUserNotFound   = errors.New("identity provider user not found")
)
