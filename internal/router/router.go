// Package router selects the application's top-level flow from session
// state. Selection is a pure function; Navigator applies it to a live store.
package router

import (
	"github.com/turfbook/turfbook/internal/session"
)

// Flow is one of the mutually exclusive top-level application modes.
type Flow int

const (
	// FlowNone means the session is still restoring; a placeholder is shown.
	FlowNone Flow = iota
	FlowOnboarding
	FlowUser
	FlowAdmin
	FlowManager
)

func (f Flow) String() string {
	switch f {
	case FlowOnboarding:
		return "onboarding"
	case FlowUser:
		return "user"
	case FlowAdmin:
		return "admin"
	case FlowManager:
		return "manager"
	default:
		return "loading"
	}
}

// Rule names the routing rule that produced a decision.
type Rule int

const (
	RuleRestoring Rule = iota
	RuleNoSession
	RuleNameCompletion
	RuleAdmin
	RuleManager
	RuleDefault
)

func (r Rule) String() string {
	switch r {
	case RuleRestoring:
		return "restoring"
	case RuleNoSession:
		return "no_session"
	case RuleNameCompletion:
		return "name_completion"
	case RuleAdmin:
		return "admin"
	case RuleManager:
		return "manager"
	default:
		return "default"
	}
}

// Decision is the selected flow and the rule that selected it.
type Decision struct {
	Flow Flow
	Rule Rule
}

// NameCompletion reports whether onboarding must open at the name step.
func (d Decision) NameCompletion() bool {
	return d.Rule == RuleNameCompletion
}

type rule struct {
	id    Rule
	flow  Flow
	match func(session.State) bool
}

// rules is evaluated in order; the first match wins. Name completion sits
// above the role rules so it dominates them.
var rules = []rule{
	{RuleRestoring, FlowNone, func(s session.State) bool { return s.IsLoading }},
	{RuleNoSession, FlowOnboarding, func(s session.State) bool { return !s.Authenticated() }},
	{RuleNameCompletion, FlowOnboarding, func(s session.State) bool { return s.Identity.NeedsName() }},
	{RuleAdmin, FlowAdmin, session.State.IsAdmin},
	{RuleManager, FlowManager, session.State.IsManager},
	{RuleDefault, FlowUser, func(session.State) bool { return true }},
}

// Select maps a session snapshot to exactly one decision.
func Select(s session.State) Decision {
	for _, r := range rules {
		if r.match(s) {
			return Decision{Flow: r.flow, Rule: r.id}
		}
	}
	return Decision{Flow: FlowUser, Rule: RuleDefault}
}
