package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turfbook/turfbook/internal/apiclient"
	"github.com/turfbook/turfbook/internal/claims"
	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/logging"
	"github.com/turfbook/turfbook/internal/phone"
	"github.com/turfbook/turfbook/internal/router"
	"github.com/turfbook/turfbook/internal/session"
	"github.com/turfbook/turfbook/internal/storage"
)

type fakeAPI struct {
	sent      []string
	sendErr   error
	verifyErr error
	result    apiclient.Verification
	verified  []string
}

func (f *fakeAPI) SendVerificationCode(_ context.Context, phone string) error {
	f.sent = append(f.sent, phone)
	return f.sendErr
}

func (f *fakeAPI) VerifyCode(_ context.Context, phone, code string) (apiclient.Verification, error) {
	f.verified = append(f.verified, phone+":"+code)
	if f.verifyErr != nil {
		return apiclient.Verification{}, f.verifyErr
	}
	return f.result, nil
}

type fakeSessions struct {
	logins []*identity.Identity
	err    error
}

func (f *fakeSessions) Login(_ context.Context, id *identity.Identity) error {
	if f.err != nil {
		return f.err
	}
	f.logins = append(f.logins, id.Clone())
	return nil
}

func mint(t *testing.T, c jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newFlow(api API, sessions Sessions, current session.State) *Flow {
	logger := logging.Discard()
	return New(Deps{
		API:      api,
		Phones:   phone.NewValidator("IN"),
		Sessions: sessions,
		Decoder:  claims.NewDecoder(logger),
		Logger:   logger,
	}, current)
}

func toCodeSent(t *testing.T, f *Flow) {
	t.Helper()
	if err := f.SubmitPhone(context.Background(), "9876543210"); err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	if f.Step() != StepCodeSent {
		t.Fatalf("expected code_sent, got %s", f.Step())
	}
}

func TestSubmitPhoneRejectsInvalidWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	f := newFlow(api, &fakeSessions{}, session.State{})

	err := f.SubmitPhone(context.Background(), "12345")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "phone" {
		t.Fatalf("expected phone validation error, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatalf("validation failure must not call the API")
	}
	if f.Step() != StepPhoneEntry || f.Message() == "" {
		t.Fatalf("expected phone_entry with message, got %s %q", f.Step(), f.Message())
	}
}

func TestSubmitPhoneSendsCanonicalNumber(t *testing.T) {
	api := &fakeAPI{}
	f := newFlow(api, &fakeSessions{}, session.State{})
	toCodeSent(t, f)
	if len(api.sent) != 1 || api.sent[0] != "+919876543210" {
		t.Fatalf("expected canonical phone sent, got %v", api.sent)
	}
	if f.Phone() != "+919876543210" {
		t.Fatalf("unexpected phone %q", f.Phone())
	}
}

func TestSubmitPhoneSendFailureStays(t *testing.T) {
	api := &fakeAPI{sendErr: &apiclient.APIError{Status: 429, Message: "Too many requests"}}
	f := newFlow(api, &fakeSessions{}, session.State{})
	if err := f.SubmitPhone(context.Background(), "9876543210"); err == nil {
		t.Fatalf("expected send failure")
	}
	if f.Step() != StepPhoneEntry || f.Message() != "Too many requests" {
		t.Fatalf("expected phone_entry with server message, got %s %q", f.Step(), f.Message())
	}
}

func TestShortCodeRejectedLocally(t *testing.T) {
	api := &fakeAPI{}
	f := newFlow(api, &fakeSessions{}, session.State{})
	toCodeSent(t, f)

	for _, code := range []string{"12345", "1234567", "12a456", ""} {
		err := f.SubmitCode(context.Background(), code)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("code %q: expected validation error, got %v", code, err)
		}
	}
	if len(api.verified) != 0 {
		t.Fatalf("invalid codes must not reach the API")
	}
	if f.Step() != StepCodeSent {
		t.Fatalf("expected code_sent, got %s", f.Step())
	}
}

func TestVerifyFailureClearsCodeAndSurfacesMessage(t *testing.T) {
	api := &fakeAPI{verifyErr: &apiclient.APIError{Status: 401, Message: "Invalid OTP"}}
	f := newFlow(api, &fakeSessions{}, session.State{})
	toCodeSent(t, f)

	if err := f.SubmitCode(context.Background(), "123456"); err == nil {
		t.Fatalf("expected verify failure")
	}
	if f.Step() != StepCodeSent {
		t.Fatalf("expected code_sent, got %s", f.Step())
	}
	if f.Code() != "" {
		t.Fatalf("expected entered code cleared, got %q", f.Code())
	}
	if f.Message() != "Invalid OTP" {
		t.Fatalf("expected server message, got %q", f.Message())
	}
}

func TestVerifyFailureWithoutMessageUsesFallback(t *testing.T) {
	cases := map[string]error{
		"timeout":       context.DeadlineExceeded,
		"missing token": apiclient.ErrMissingToken,
	}
	for name, verifyErr := range cases {
		api := &fakeAPI{verifyErr: verifyErr}
		f := newFlow(api, &fakeSessions{}, session.State{})
		toCodeSent(t, f)

		_ = f.SubmitCode(context.Background(), "123456")
		if f.Step() != StepCodeSent || f.Message() != MsgVerifyFailed {
			t.Fatalf("%s: expected fallback message in code_sent, got %s %q", name, f.Step(), f.Message())
		}
	}
}

func TestResend(t *testing.T) {
	api := &fakeAPI{}
	f := newFlow(api, &fakeSessions{}, session.State{})
	toCodeSent(t, f)

	if err := f.Resend(context.Background()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	api.sendErr = errors.New("network down")
	if err := f.Resend(context.Background()); err == nil {
		t.Fatalf("expected resend failure")
	}
	if f.Step() != StepCodeSent || f.Message() != MsgSendFailed {
		t.Fatalf("resend failure must keep code_sent, got %s %q", f.Step(), f.Message())
	}
	if len(api.sent) != 3 || api.sent[2] != "+919876543210" {
		t.Fatalf("expected resends for the same phone, got %v", api.sent)
	}
}

func TestVerifyWithNameLogsIn(t *testing.T) {
	token := mint(t, jwt.MapClaims{"sub": "acct-1", "name": "Ravi", "role": "MANAGER"})
	api := &fakeAPI{result: apiclient.Verification{Token: token}}
	sessions := &fakeSessions{}
	f := newFlow(api, sessions, session.State{})
	toCodeSent(t, f)

	if err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if f.Step() != StepAuthenticated {
		t.Fatalf("expected authenticated, got %s", f.Step())
	}
	if len(sessions.logins) != 1 {
		t.Fatalf("expected one login, got %d", len(sessions.logins))
	}
	got := sessions.logins[0]
	if got.ID != "acct-1" || got.Role != identity.RoleManager || got.DisplayName() != "Ravi" || got.Phone != "+919876543210" {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestVerifyAdminWithoutNameSkipsNameStep(t *testing.T) {
	token := mint(t, jwt.MapClaims{"sub": "acct-9", "role": "ADMIN"})
	api := &fakeAPI{result: apiclient.Verification{Token: token, IsNewUser: true}}
	sessions := &fakeSessions{}
	f := newFlow(api, sessions, session.State{})
	toCodeSent(t, f)

	if err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if f.Step() != StepAuthenticated || len(sessions.logins) != 1 || sessions.logins[0].Role != identity.RoleAdmin {
		t.Fatalf("expected admin login, got %s %v", f.Step(), sessions.logins)
	}
}

func TestVerifyTokenWithoutSubjectFails(t *testing.T) {
	api := &fakeAPI{result: apiclient.Verification{Token: "opaque"}}
	sessions := &fakeSessions{}
	f := newFlow(api, sessions, session.State{})
	toCodeSent(t, f)

	if err := f.SubmitCode(context.Background(), "123456"); err == nil {
		t.Fatalf("expected failure for undecodable token")
	}
	if f.Step() != StepCodeSent || len(sessions.logins) != 0 {
		t.Fatalf("expected code_sent without login, got %s", f.Step())
	}
}

func TestLoginFailureAfterVerify(t *testing.T) {
	token := mint(t, jwt.MapClaims{"sub": "acct-1", "name": "Ravi"})
	api := &fakeAPI{result: apiclient.Verification{Token: token}}
	f := newFlow(api, &fakeSessions{err: errors.New("disk full")}, session.State{})
	toCodeSent(t, f)

	if err := f.SubmitCode(context.Background(), "123456"); err == nil {
		t.Fatalf("expected login failure")
	}
	if f.Step() != StepCodeSent || f.Message() != MsgSessionFailed {
		t.Fatalf("expected code_sent with session message, got %s %q", f.Step(), f.Message())
	}
}

func TestEmptyNameRejected(t *testing.T) {
	token := mint(t, jwt.MapClaims{"sub": "acct-1"})
	api := &fakeAPI{result: apiclient.Verification{Token: token, IsNewUser: true}}
	sessions := &fakeSessions{}
	f := newFlow(api, sessions, session.State{})
	toCodeSent(t, f)
	if err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}

	err := f.SubmitName(context.Background(), "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if f.Step() != StepNeedsName || len(sessions.logins) != 0 {
		t.Fatalf("empty name must not log in")
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newFlow(&fakeAPI{}, &fakeSessions{}, session.State{})
	if err := f.SubmitCode(context.Background(), "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := f.SubmitName(context.Background(), "Asha"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := f.Resend(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestChangePhone(t *testing.T) {
	f := newFlow(&fakeAPI{}, &fakeSessions{}, session.State{})
	toCodeSent(t, f)
	if err := f.ChangePhone(); err != nil {
		t.Fatalf("change phone: %v", err)
	}
	if f.Step() != StepPhoneEntry {
		t.Fatalf("expected phone_entry, got %s", f.Step())
	}
}

func TestResumeAtNameStep(t *testing.T) {
	current := session.State{Identity: &identity.Identity{
		ID: "acct-7", Phone: "+919876543210", Role: identity.RoleUser, IsNewUser: true, Token: "tok-7",
	}}
	sessions := &fakeSessions{}
	f := newFlow(&fakeAPI{}, sessions, current)
	if f.Step() != StepNeedsName {
		t.Fatalf("expected to resume at needs_name, got %s", f.Step())
	}
	if err := f.SubmitName(context.Background(), " Meera "); err != nil {
		t.Fatalf("submit name: %v", err)
	}
	got := sessions.logins[0]
	if got.ID != "acct-7" || got.Token != "tok-7" || got.DisplayName() != "Meera" || !got.IsNewUser || got.Role != identity.RoleUser {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestPhoneToUserFlowScenario(t *testing.T) {
	logger := logging.Discard()
	store := session.New(storage.NewMemoryStore(), claims.NewDecoder(logger), logger)
	store.Restore(context.Background())

	token := mint(t, jwt.MapClaims{"sub": "acct-1"})
	api := &fakeAPI{result: apiclient.Verification{Token: token, IsNewUser: true}}
	f := newFlow(api, store, store.State())

	toCodeSent(t, f)
	if err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if f.Step() != StepNeedsName {
		t.Fatalf("expected needs_name, got %s", f.Step())
	}
	if d := router.Select(store.State()); d.Flow != router.FlowOnboarding {
		t.Fatalf("expected onboarding while the name is pending, got %s", d.Flow)
	}

	if err := f.SubmitName(context.Background(), "Asha"); err != nil {
		t.Fatalf("submit name: %v", err)
	}
	state := store.State()
	if !state.Authenticated() {
		t.Fatalf("expected published session")
	}
	id := state.Identity
	if id.DisplayName() != "Asha" || !id.IsNewUser || id.Role != identity.RoleUser || id.Token != token || id.ID != "acct-1" {
		t.Fatalf("unexpected session identity %+v", id)
	}
	if d := router.Select(state); d.Flow != router.FlowUser {
		t.Fatalf("expected user flow, got %s", d.Flow)
	}
}
