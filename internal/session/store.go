// Package session owns the device's authenticated identity and its durable
// mirror. The Store is the only writer of both.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/turfbook/turfbook/internal/claims"
	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/logging"
	"github.com/turfbook/turfbook/internal/storage"
)

// ErrIncompleteIdentity is returned when an identity lacks id, phone, role or token.
var ErrIncompleteIdentity = errors.New("session: identity requires id, phone, role and token")

// State is a read-only snapshot of the session.
type State struct {
	Identity  *identity.Identity
	IsLoading bool
}

// Authenticated reports whether a user is logged in.
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// IsAdmin is derived from the current identity on every call.
func (s State) IsAdmin() bool {
	return s.Identity != nil && s.Identity.Role == identity.RoleAdmin
}

// IsManager is derived from the current identity on every call.
func (s State) IsManager() bool {
	return s.Identity != nil && s.Identity.Role == identity.RoleManager
}

// Listener is notified synchronously after every published change.
type Listener func(State)

// Store holds the current session. Mutations are serialized and write
// through to storage before the in-memory value changes.
type Store struct {
	storage storage.Store
	decoder *claims.Decoder
	logger  *slog.Logger

	mu       sync.Mutex
	restored bool

	stateMu sync.RWMutex
	current *identity.Identity
	loading bool

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// New builds a Store in the loading state. Call Restore once at startup.
func New(store storage.Store, decoder *claims.Decoder, logger *slog.Logger) *Store {
	if decoder == nil {
		decoder = claims.NewDecoder(logger)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		storage:   store,
		decoder:   decoder,
		logger:    logger,
		loading:   true,
		listeners: make(map[int]Listener),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return State{Identity: s.current.Clone(), IsLoading: s.loading}
}

// Subscribe registers fn and immediately calls it with the current state.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	fn(s.State())

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Restore loads the persisted session. It runs at most once per Store and
// always leaves the store out of the loading state; read failures mean
// "no session".
func (s *Store) Restore(ctx context.Context) State {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		return s.State()
	}
	s.set(s.load(ctx))
	s.mu.Unlock()

	state := s.State()
	s.notify(state)
	return state
}

func (s *Store) load(ctx context.Context) *identity.Identity {
	raw, err := s.storage.Get(ctx, storage.KeyUser)
	if err != nil {
		s.logReadFailure(storage.KeyUser, err)
		return nil
	}
	token, err := s.storage.Get(ctx, storage.KeyToken)
	if err != nil {
		s.logReadFailure(storage.KeyToken, err)
		return nil
	}

	var stored identity.Identity
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("session: stored identity is corrupt", slog.Any("error", err))
		return nil
	}
	stored.Token = token

	merged := s.decoder.MergeInto(&stored)
	if !merged.Complete() {
		s.logger.Warn("session: stored identity is incomplete", slog.String("id", merged.ID))
		return nil
	}
	return merged
}

func (s *Store) logReadFailure(key string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("session: nothing persisted", slog.String("key", key))
		return
	}
	s.logger.Warn("session: storage read failed", slog.String("key", key), slog.Any("error", err))
}

// Login merges the token's name claim into id, persists it and publishes
// it. On a storage error nothing is published and the error is returned.
func (s *Store) Login(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return ErrIncompleteIdentity
	}
	merged := s.decoder.MergeInto(id)
	if !merged.Complete() {
		return ErrIncompleteIdentity
	}

	s.mu.Lock()
	if err := s.persist(ctx, merged, true); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: login: %w", err)
	}
	s.set(merged)
	s.mu.Unlock()

	s.logger.Info("session: logged in", slog.String("id", merged.ID), slog.String("role", string(merged.Role)))
	s.notify(s.State())
	return nil
}

// UpdateUser persists id as given and republishes it. Claims are not
// re-decoded. An empty token keeps the current session's token.
func (s *Store) UpdateUser(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return ErrIncompleteIdentity
	}
	next := id.Clone()
	withToken := next.Token != ""

	s.mu.Lock()
	if !withToken {
		s.stateMu.RLock()
		if s.current != nil {
			next.Token = s.current.Token
		}
		s.stateMu.RUnlock()
	}
	if !next.Complete() {
		s.mu.Unlock()
		return ErrIncompleteIdentity
	}
	if err := s.persist(ctx, next, withToken); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: update user: %w", err)
	}
	s.set(next)
	s.mu.Unlock()

	s.notify(s.State())
	return nil
}

// Logout clears storage and memory. Memory is always cleared; removal
// failures are returned joined after the fact.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	var errs []error
	for _, key := range []string{storage.KeyUser, storage.KeyToken} {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.logger.Warn("session: storage remove failed", slog.String("key", key), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	s.set(nil)
	s.mu.Unlock()

	s.logger.Info("session: logged out")
	s.notify(s.State())
	if len(errs) > 0 {
		return fmt.Errorf("session: logout: %w", errors.Join(errs...))
	}
	return nil
}

// persist writes id (and its token when withToken is set). A partial
// write is rolled back to the previously published identity.
func (s *Store) persist(ctx context.Context, id *identity.Identity, withToken bool) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeyUser, string(raw)); err != nil {
		s.rollback(ctx)
		return fmt.Errorf("write %s: %w", storage.KeyUser, err)
	}
	if withToken {
		if err := s.storage.Set(ctx, storage.KeyToken, id.Token); err != nil {
			s.rollback(ctx)
			return fmt.Errorf("write %s: %w", storage.KeyToken, err)
		}
	}
	return nil
}

func (s *Store) rollback(ctx context.Context) {
	s.stateMu.RLock()
	prev := s.current.Clone()
	s.stateMu.RUnlock()

	var err error
	if prev == nil {
		err = errors.Join(s.storage.Remove(ctx, storage.KeyUser), s.storage.Remove(ctx, storage.KeyToken))
	} else if raw, mErr := json.Marshal(prev); mErr != nil {
		err = mErr
	} else {
		err = errors.Join(s.storage.Set(ctx, storage.KeyUser, string(raw)), s.storage.Set(ctx, storage.KeyToken, prev.Token))
	}
	if err != nil {
		s.logger.Warn("session: rollback after failed write was incomplete", slog.Any("error", err))
	}
}

// set publishes id and ends the loading phase for good. A mutation that
// lands before Restore supersedes it. Callers hold mu.
func (s *Store) set(id *identity.Identity) {
	s.stateMu.Lock()
	s.current = id.Clone()
	s.loading = false
	s.stateMu.Unlock()
	s.restored = true
}

func (s *Store) notify(state State) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
