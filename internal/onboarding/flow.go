// Package onboarding drives phone verification and name completion for a
// device without a usable session.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/turfbook/turfbook/internal/apiclient"
	"github.com/turfbook/turfbook/internal/claims"
	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/session"
)

// Step is the onboarding state.
type Step int

const (
	StepPhoneEntry Step = iota
	StepCodeSent
	StepVerifying
	StepNeedsName
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepPhoneEntry:
		return "phone_entry"
	case StepCodeSent:
		return "code_sent"
	case StepVerifying:
		return "verifying"
	case StepNeedsName:
		return "needs_name"
	case StepAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// API is the slice of the backend onboarding needs.
type API interface {
	SendVerificationCode(ctx context.Context, phone string) error
	VerifyCode(ctx context.Context, phone, code string) (apiclient.Verification, error)
}

// PhoneValidator checks and canonicalizes user input.
type PhoneValidator interface {
	IsValid(input string) bool
	ToCanonical(input string) string
}

// Sessions receives the identity once onboarding completes.
type Sessions interface {
	Login(ctx context.Context, id *identity.Identity) error
}

// Deps are the collaborators of a Flow.
type Deps struct {
	API      API
	Phones   PhoneValidator
	Sessions Sessions
	Decoder  *claims.Decoder
	Logger   *slog.Logger
}

// pendingName is what the name step needs to finish the login.
type pendingName struct {
	token     string
	phone     string
	subject   string
	isNewUser bool
}

// Flow is the onboarding state machine. It is driven by one caller; a
// network call in progress shows up as StepVerifying.
type Flow struct {
	deps Deps

	mu      sync.Mutex
	step    Step
	phone   string
	code    string
	pending *pendingName
	message string
}

// New starts a flow. A session that still needs a name resumes directly at
// the name step with that session's token, phone and id.
func New(deps Deps, current session.State) *Flow {
	if deps.Decoder == nil {
		deps.Decoder = claims.NewDecoder(deps.Logger)
	}
	f := &Flow{deps: deps, step: StepPhoneEntry}
	if id := current.Identity; id.NeedsName() {
		f.enterNeedsName(pendingName{
			token:     id.Token,
			phone:     id.Phone,
			subject:   id.ID,
			isNewUser: id.IsNewUser,
		})
	}
	return f
}

// Step returns the current state.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Phone returns the canonical phone the code was sent to.
func (f *Flow) Phone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone
}

// Code returns the code most recently entered; it is cleared on failure.
func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Message returns the last user-visible error message, or "".
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// SubmitPhone validates input locally and requests a code for it.
func (f *Flow) SubmitPhone(ctx context.Context, input string) error {
	f.mu.Lock()
	if err := f.expect(StepPhoneEntry); err != nil {
		f.mu.Unlock()
		return err
	}
	if !f.deps.Phones.IsValid(input) {
		err := &ValidationError{Field: "phone", Message: "Please enter a valid phone number"}
		f.message = err.Message
		f.mu.Unlock()
		return err
	}
	phone := f.deps.Phones.ToCanonical(input)
	f.message = ""
	f.mu.Unlock()

	if err := f.deps.API.SendVerificationCode(ctx, phone); err != nil {
		f.logFailure("send code failed", err)
		f.mu.Lock()
		f.message = UserMessage(err, MsgSendFailed)
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.phone = phone
	f.code = ""
	f.step = StepCodeSent
	f.mu.Unlock()
	return nil
}

// ChangePhone returns from the code step to phone entry.
func (f *Flow) ChangePhone() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expect(StepCodeSent); err != nil {
		return err
	}
	f.step = StepPhoneEntry
	f.code = ""
	f.message = ""
	return nil
}

// Resend requests another code for the same phone. Failure leaves the
// step unchanged.
func (f *Flow) Resend(ctx context.Context) error {
	f.mu.Lock()
	if err := f.expect(StepCodeSent); err != nil {
		f.mu.Unlock()
		return err
	}
	phone := f.phone
	f.message = ""
	f.mu.Unlock()

	if err := f.deps.API.SendVerificationCode(ctx, phone); err != nil {
		f.logFailure("resend code failed", err)
		f.mu.Lock()
		f.message = UserMessage(err, MsgSendFailed)
		f.mu.Unlock()
		return err
	}
	return nil
}

// SubmitCode verifies a 6-digit code. Depending on the token's claims the
// flow either needs a name or logs the session in.
func (f *Flow) SubmitCode(ctx context.Context, code string) error {
	f.mu.Lock()
	if err := f.expect(StepCodeSent); err != nil {
		f.mu.Unlock()
		return err
	}
	f.code = code
	if err := validateCode(code); err != nil {
		f.message = UserMessage(err, MsgVerifyFailed)
		f.mu.Unlock()
		return err
	}
	phone := f.phone
	f.step = StepVerifying
	f.message = ""
	f.mu.Unlock()

	v, err := f.deps.API.VerifyCode(ctx, phone, code)
	if err != nil {
		f.logFailure("verify code failed", err)
		f.failVerification(UserMessage(err, MsgVerifyFailed))
		return err
	}

	c := f.deps.Decoder.Decode(v.Token)
	if c.Subject == "" {
		err := errors.New("onboarding: token carries no subject")
		f.logFailure("verify code returned an unusable token", err)
		f.failVerification(MsgVerifyFailed)
		return err
	}

	role := c.RoleOr(identity.RoleUser)
	if !c.HasName() && role == identity.RoleUser {
		f.mu.Lock()
		f.enterNeedsName(pendingName{token: v.Token, phone: phone, subject: c.Subject, isNewUser: v.IsNewUser})
		f.mu.Unlock()
		return nil
	}

	id := &identity.Identity{
		ID:        c.Subject,
		Phone:     phone,
		Role:      role,
		Name:      c.Name,
		IsNewUser: v.IsNewUser,
		Token:     v.Token,
	}
	if err := f.deps.Sessions.Login(ctx, id); err != nil {
		f.logFailure("session login failed", err)
		f.failVerification(MsgSessionFailed)
		return err
	}

	f.mu.Lock()
	f.step = StepAuthenticated
	f.mu.Unlock()
	return nil
}

// SubmitName completes onboarding for an account that has no name yet.
func (f *Flow) SubmitName(ctx context.Context, name string) error {
	f.mu.Lock()
	if err := f.expect(StepNeedsName); err != nil {
		f.mu.Unlock()
		return err
	}
	trimmed, err := validateName(name)
	if err != nil {
		f.message = UserMessage(err, "")
		f.mu.Unlock()
		return err
	}
	p := *f.pending
	f.message = ""
	f.mu.Unlock()

	id := &identity.Identity{
		ID:        p.subject,
		Phone:     p.phone,
		Role:      identity.RoleUser,
		Name:      identity.StringPtr(trimmed),
		IsNewUser: p.isNewUser,
		Token:     p.token,
	}
	if err := f.deps.Sessions.Login(ctx, id); err != nil {
		f.logFailure("session login failed", err)
		f.mu.Lock()
		f.message = MsgSessionFailed
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.step = StepAuthenticated
	f.pending = nil
	f.mu.Unlock()
	return nil
}

// enterNeedsName is the single way into the name step. Callers hold mu.
func (f *Flow) enterNeedsName(p pendingName) {
	f.pending = &p
	f.phone = p.phone
	f.code = ""
	f.message = ""
	f.step = StepNeedsName
}

func (f *Flow) failVerification(message string) {
	f.mu.Lock()
	f.step = StepCodeSent
	f.code = ""
	f.message = message
	f.mu.Unlock()
}

// expect checks the current step. Callers hold mu.
func (f *Flow) expect(want Step) error {
	if f.step != want {
		return fmt.Errorf("%w: %s while in %s", ErrInvalidTransition, want, f.step)
	}
	return nil
}

func (f *Flow) logFailure(msg string, err error) {
	if f.deps.Logger == nil {
		return
	}
	f.deps.Logger.Info("onboarding: "+msg, slog.Any("error", err))
}
