package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turfbook/turfbook/internal/identity"
)

// Service manages account lifecycle.
type Service struct {
	repo  Repository
	roles map[string]identity.Role
	now   func() time.Time
}

// NewService creates a new account service. roles pre-assigns elevated
// roles by phone; everyone else signs up as USER.
func NewService(repo Repository, roles map[string]identity.Role) *Service {
	return &Service{repo: repo, roles: roles, now: time.Now}
}

// FindOrCreate returns the account for phone, creating it on first
// verification. created is true for a brand-new account.
func (s *Service) FindOrCreate(ctx context.Context, phone string) (account Account, created bool, err error) {
	account, err = s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		role, ok := s.roles[phone]
		if !ok {
			role = identity.RoleUser
		}
		account = Account{
			ID:        uuid.New().String(),
			Phone:     phone,
			Role:      role,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, account); err != nil {
			return Account{}, false, err
		}
		created = true
	default:
		return Account{}, false, err
	}

	at := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, account.ID, at); err != nil {
		return Account{}, false, err
	}
	account.LastLogin = at
	return account, created, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Rename sets the account's display name.
func (s *Service) Rename(ctx context.Context, id, name string) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, errors.New("name is required")
	}
	if err := s.repo.UpdateName(ctx, id, name); err != nil {
		return Account{}, err
	}
	return s.repo.FindByID(ctx, id)
}
