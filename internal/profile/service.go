package profile

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/session"
)

// ErrNotAuthenticated is returned when there is no session to edit.
var ErrNotAuthenticated = errors.New("profile: not authenticated")

// NameSetter is the backend call that stores a display name. It returns
// the reissued token carrying the name, or "" when none was issued.
type NameSetter interface {
	SetDisplayName(ctx context.Context, name string) (string, error)
}

// Sessions is the part of the session store profile edits need.
type Sessions interface {
	State() session.State
	UpdateUser(ctx context.Context, id *identity.Identity) error
}

// Service edits the logged-in user's profile.
type Service struct {
	api      NameSetter
	sessions Sessions
}

// NewService creates a profile service.
func NewService(api NameSetter, sessions Sessions) *Service {
	return &Service{api: api, sessions: sessions}
}

// Rename stores name on the server, then in the local session together
// with the reissued token, so a later restore does not bring back the
// name claim of the old token.
func (s *Service) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.RuneLength(1, 100)); err != nil {
		return err
	}
	current := s.sessions.State().Identity
	if current == nil {
		return ErrNotAuthenticated
	}
	token, err := s.api.SetDisplayName(ctx, name)
	if err != nil {
		return err
	}
	current.Name = identity.StringPtr(name)
	if token != "" {
		current.Token = token
	}
	return s.sessions.UpdateUser(ctx, current)
}
