// Package account fronts the upstream account system. The workflow only ever
// asks one question of it: does this account exist.
package account

import (
	"context"
	"sync"

	id "enrolld/pkg/domain"
)

// Verifier answers account existence checks.
type Verifier interface {
	AccountExists(ctx context.Context, accountID id.AccountID) (bool, error)
}

// InMemoryDirectory is a local stand-in for the upstream account system,
// used in development and tests.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]struct{}
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		accounts: make(map[id.AccountID]struct{}),
	}
}

// Add registers an account so later existence checks succeed.
func (d *InMemoryDirectory) Add(accountID id.AccountID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[accountID] = struct{}{}
}

func (d *InMemoryDirectory) AccountExists(_ context.Context, accountID id.AccountID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[accountID]
	return ok, nil
}
