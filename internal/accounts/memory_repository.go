package accounts

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account store for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[account.Phone]; exists {
		return errors.New("account exists")
	}
	r.accounts[account.Phone] = account
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[phone]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) UpdateName(_ context.Context, id, name string) error {
	return r.mutate(id, func(a *Account) { a.Name = name })
}

func (r *memoryRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(a *Account) { a.LastLogin = at.UTC() })
}

func (r *memoryRepository) mutate(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for phone, account := range r.accounts {
		if account.ID == id {
			fn(&account)
			r.accounts[phone] = account
			return nil
		}
	}
	return ErrNotFound
}
