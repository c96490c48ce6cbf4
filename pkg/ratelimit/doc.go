// Package ratelimit enforces sliding-window call budgets over a shared
// counter backend.
//
// Each call site configures an independent named budget (e.g. unauthenticated
// reads at 40 calls per 60s). A counter document exists per (limiter name,
// qualifier), where the qualifier is an authenticated user id or a caller IP.
// The serving layer is stateless and horizontally scaled, so admission is a
// transactional read-modify-write against the backend rather than in-memory
// state: the store prunes timestamps outside the window, persists the pruned
// list even on rejection, and appends the current call only when room exists.
package ratelimit
