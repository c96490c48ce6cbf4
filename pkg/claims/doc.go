// Package claims manages the authorization claim set embedded in identity
// tokens.
//
// Claims are a denormalized projection of the membership record, read at
// request time without a database round trip. Staleness is bounded by the
// next token refresh; the synchronizer can force a refresh after sensitive
// transitions (upgrade, cancellation).
package claims
