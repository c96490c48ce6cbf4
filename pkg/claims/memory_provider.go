package claims

import (
	"context"
	"sync"
)

// MemoryProvider is an in-memory IdentityProvider for tests and local
// development. It records write and revocation counts so tests can assert
// that the synchronizer skips redundant writes.
type MemoryProvider struct {
	mu      sync.Mutex
	claims  map[string]Claims
	writes  map[string]int
	revokes map[string]int
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		claims:  make(map[string]Claims),
		writes:  make(map[string]int),
		revokes: make(map[string]int),
	}
}

// GetClaims implements IdentityProvider.
func (p *MemoryProvider) GetClaims(ctx context.Context, userID string) (Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claims[userID], nil
}

// SetClaims implements IdentityProvider.
func (p *MemoryProvider) SetClaims(ctx context.Context, userID string, c Claims) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claims[userID] = c
	p.writes[userID]++
	return nil
}

// RevokeRefreshTokens implements IdentityProvider.
func (p *MemoryProvider) RevokeRefreshTokens(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokes[userID]++
	return nil
}

// Writes returns how many times SetClaims was called for the user.
func (p *MemoryProvider) Writes(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[userID]
}

// Revokes returns how many times RevokeRefreshTokens was called for the user.
func (p *MemoryProvider) Revokes(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revokes[userID]
}
