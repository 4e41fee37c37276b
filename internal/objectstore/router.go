package objectstore

import (
	"errors"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ErrNoAccounts is returned when a Router is constructed without accounts.
var ErrNoAccounts = errors.New("objectstore: no storage accounts configured")

// ErrUnknownAccount is returned when a key resolves to an account that
// has no registered store.
var ErrUnknownAccount = errors.New("objectstore: unknown storage account")

// Router maps object keys onto storage accounts deterministically, so
// the same key always resolves to the same account regardless of which
// node performs the lookup.
type Router struct {
	accounts []string
	stores   map[string]Store
}

// NewRouter creates a Router over the given account-name -> Store mapping.
func NewRouter(stores map[string]Store) (*Router, error) {
	if len(stores) == 0 {
		return nil, ErrNoAccounts
	}

	accounts := make([]string, 0, len(stores))
	for name := range stores {
		accounts = append(accounts, name)
	}
	// Stable ordering so the hash slot assignment is identical everywhere.
	sort.Strings(accounts)

	return &Router{accounts: accounts, stores: stores}, nil
}

// AccountFor resolves the storage account for a key.
func (r *Router) AccountFor(key string) string {
	slot := xxhash.Sum64String(key) % uint64(len(r.accounts))
	return r.accounts[slot]
}

// StoreFor resolves the Store for a key.
func (r *Router) StoreFor(key string) Store {
	return r.stores[r.AccountFor(key)]
}

// Store returns the Store registered for an account name.
func (r *Router) Store(account string) (Store, error) {
	s, ok := r.stores[account]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return s, nil
}

// Accounts returns the configured account names in stable order.
func (r *Router) Accounts() []string {
	out := make([]string, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Close closes every underlying store, returning the first error seen.
func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
