package claims

import "context"

// IdentityProvider abstracts the external identity service that stores the
// claim set attached to a user's tokens. Claims written here take effect on
// the user's next token refresh, which callers can force after sensitive
// transitions; until then the old claims remain valid.
type IdentityProvider interface {
	// GetClaims returns the user's current claim set. A user with no claims
	// set yet yields the zero Claims, not an error.
	GetClaims(ctx context.Context, userID string) (Claims, error)

	// SetClaims replaces the user's claim set.
	SetClaims(ctx context.Context, userID string, c Claims) error

	// RevokeRefreshTokens forces the user's next token refresh so new claims
	// take effect immediately rather than at natural token expiry.
	RevokeRefreshTokens(ctx context.Context, userID string) error
}
