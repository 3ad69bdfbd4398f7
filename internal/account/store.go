package account

import (
	"sort"
	"sync"

	"github.com/congo-pay/payments_engine/internal/transaction"
)

// Store keeps one Account per client. Accounts go in and out by value.
type Store struct {
	mu       sync.RWMutex
	accounts map[transaction.ClientID]Account
}

// NewStore constructs an empty account store.
func NewStore() *Store {
	return &Store{accounts: make(map[transaction.ClientID]Account)}
}

// GetOrCreate returns the client's account, creating a zero, unlocked one if needed.
func (s *Store) GetOrCreate(client transaction.ClientID) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[client]
	if !ok {
		acc = Account{Client: client}
		s.accounts[client] = acc
	}
	return acc
}

// Get returns the client's account if it exists.
func (s *Store) Get(client transaction.ClientID) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[client]
	return acc, ok
}

// Put replaces the stored account for acc.Client.
func (s *Store) Put(acc Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Client] = acc
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Snapshot returns every account ordered by client id.
func (s *Store) Snapshot() []Account {
	s.mu.RLock()
	out := make([]Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	s.mu.RUnlock()

	SortByClient(out)
	return out
}

// SortByClient orders accounts by ascending client id.
func SortByClient(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Client < accounts[j].Client })
}
