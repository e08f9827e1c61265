package lendingpool

import (
	"math/big"
	"sync"
)

// AssetBook is the external transfer primitive the pool settles against. The
// pool holds its assets in a vault account and moves value in and out through
// Credit and Debit. Implementations must be reliable: a Debit that passed the
// balance check under the pool lock must not fail.
type AssetBook interface {
	Balance(account string) *big.Int
	Credit(account string, amount *big.Int) error
	Debit(account string, amount *big.Int) error
}

// MemoryBook is an in-process AssetBook backed by a map. It serves tests and
// single-node deployments; balances can be seeded with Mint.
type MemoryBook struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
}

// NewMemoryBook returns an empty in-memory asset book.
func NewMemoryBook() *MemoryBook {
	return &MemoryBook{balances: make(map[string]*big.Int)}
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (b *MemoryBook) Mint(account string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(account, amount)
}

// Balance returns a copy of the account balance, zero when unknown.
func (b *MemoryBook) Balance(account string) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Credit adds amount to the account.
func (b *MemoryBook) Credit(account string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(account, amount)
	return nil
}

// Debit removes amount from the account, rejecting overdrafts.
func (b *MemoryBook) Debit(account string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

// Accounts returns a snapshot of all balances, for persistence.
func (b *MemoryBook) Accounts() map[string]*big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*big.Int, len(b.balances))
	for account, bal := range b.balances {
		out[account] = new(big.Int).Set(bal)
	}
	return out
}

func (b *MemoryBook) add(account string, amount *big.Int) {
	if bal, ok := b.balances[account]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[account] = new(big.Int).Set(amount)
}
