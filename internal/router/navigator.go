package router

import (
	"log/slog"
	"sync"

	"github.com/turfbook/turfbook/internal/session"
)

// Screen identifies a view inside a flow's navigation stack.
type Screen string

// Entry screens mounted when a flow becomes active.
const (
	ScreenSplash         Screen = "splash"
	ScreenPhoneEntry     Screen = "phone_entry"
	ScreenNameCompletion Screen = "name_completion"
	ScreenUserHome       Screen = "user_home"
	ScreenAdminHome      Screen = "admin_home"
	ScreenManagerHome    Screen = "manager_home"
)

// EntryScreen returns the first screen of the flow chosen by d.
func EntryScreen(d Decision) Screen {
	switch d.Flow {
	case FlowOnboarding:
		if d.NameCompletion() {
			return ScreenNameCompletion
		}
		return ScreenPhoneEntry
	case FlowUser:
		return ScreenUserHome
	case FlowAdmin:
		return ScreenAdminHome
	case FlowManager:
		return ScreenManagerHome
	default:
		return ScreenSplash
	}
}

// MountFunc is called whenever a different decision is mounted.
type MountFunc func(Decision)

// Navigator re-selects on every session change and owns the history of the
// mounted flow. Switching flows discards the previous flow's history.
type Navigator struct {
	logger *slog.Logger
	mount  MountFunc

	mu       sync.Mutex
	decision Decision
	stack    []Screen
	mounted  bool

	unsubscribe func()
}

// NewNavigator builds an unattached Navigator.
func NewNavigator(logger *slog.Logger, mount MountFunc) *Navigator {
	return &Navigator{logger: logger, mount: mount}
}

// Attach subscribes to store; the current state is applied immediately.
func (n *Navigator) Attach(store *session.Store) {
	n.Detach()
	n.unsubscribe = store.Subscribe(n.Apply)
}

// Detach stops following the store.
func (n *Navigator) Detach() {
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}

// Apply re-evaluates the routing rules against s.
func (n *Navigator) Apply(s session.State) {
	d := Select(s)

	n.mu.Lock()
	if n.mounted && d == n.decision {
		n.mu.Unlock()
		return
	}
	prev := n.decision
	n.decision = d
	n.stack = []Screen{EntryScreen(d)}
	n.mounted = true
	n.mu.Unlock()

	if n.logger != nil {
		n.logger.Debug("router: flow mounted",
			slog.String("from", prev.Flow.String()),
			slog.String("to", d.Flow.String()),
			slog.String("rule", d.Rule.String()),
		)
	}
	if n.mount != nil {
		n.mount(d)
	}
}

// Decision returns the mounted decision.
func (n *Navigator) Decision() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// Push opens screen inside the mounted flow.
func (n *Navigator) Push(screen Screen) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stack = append(n.stack, screen)
}

// Back pops one screen. The flow's entry screen is never popped.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) <= 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	return true
}

// Current returns the visible screen.
func (n *Navigator) Current() Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 0 {
		return ScreenSplash
	}
	return n.stack[len(n.stack)-1]
}

// History returns a copy of the navigation stack.
func (n *Navigator) History() []Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Screen(nil), n.stack...)
}
