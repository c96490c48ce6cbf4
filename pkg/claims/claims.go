package claims

// ProStatus identifies which paid tier the claims grant, if any.
type ProStatus string

const (
	ProStatusNone     ProStatus = ""
	ProStatusMonthly  ProStatus = "Monthly"
	ProStatusLifetime ProStatus = "Lifetime"
)

// Claims is the small signed claim set embedded in a user's identity token.
// It exists so authorization checks can run off the token alone, without a
// database round trip; the membership record is the source of truth and
// claims must be recomputed whenever it changes in a way that affects
// entitlement.
type Claims struct {
	Member    bool      `json:"member"`
	ProStatus ProStatus `json:"proStatus,omitempty"`
	Expires   *int64    `json:"expires,omitempty"` // epoch seconds; set only for a scheduled cancellation
	IsAdmin   bool      `json:"isAdmin,omitempty"`
}

// Equal reports whether two claim sets are identical. The comparison is an
// explicit check over the known fields rather than a structural JSON diff,
// so adding a field here forces the comparison to be revisited.
func (c Claims) Equal(other Claims) bool {
	if c.Member != other.Member || c.ProStatus != other.ProStatus || c.IsAdmin != other.IsAdmin {
		return false
	}
	if (c.Expires == nil) != (other.Expires == nil) {
		return false
	}
	if c.Expires != nil && *c.Expires != *other.Expires {
		return false
	}
	return true
}

// ExpiresAt is a helper for building the Expires claim.
func ExpiresAt(epochSeconds int64) *int64 {
	return &epochSeconds
}
