package routes_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/turfbook/turfbook/internal/claims"
	"github.com/turfbook/turfbook/internal/config"
	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/logging"
	"github.com/turfbook/turfbook/internal/notification"
	"github.com/turfbook/turfbook/internal/routes"
	"github.com/turfbook/turfbook/internal/server"
)

type outbox struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (o *outbox) Send(_ context.Context, m notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatalf("no code was sent")
	}
	return codeFrom(o.sent[len(o.sent)-1].Body)
}

func codeFrom(body string) string {
	return body[len(body)-6:]
}

func testConfig() config.Config {
	return config.Config{
		AppName:        "TurfBook",
		AppEnv:         "test",
		JWTSecret:      "test-secret",
		PhoneRegion:    "IN",
		TokenTTL:       time.Hour,
		OTPTTL:         5 * time.Minute,
		OTPMaxAttempts: 3,
		OTPPerMinute:   3,
		Roles:          map[string]identity.Role{"+919000000001": identity.RoleAdmin},
	}
}

func newApp(t *testing.T, d routes.Deps) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: server.ErrorHandler})
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if err := routes.Setup(app, d); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("%s %s: decode body: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestOnboardingEndToEnd(t *testing.T) {
	sms := &outbox{}
	app := newApp(t, routes.Deps{Cfg: testConfig(), Notifier: sms})

	status, body := call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"98765 43210"}`, "")
	if status != http.StatusOK {
		t.Fatalf("send-otp: expected 200 got %d %v", status, body)
	}

	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9876543210","otp":"`+sms.lastCode(t)+`"}`, "")
	if status != http.StatusOK {
		t.Fatalf("verify-otp: expected 200 got %d %v", status, body)
	}
	if body["isNewUser"] != true {
		t.Fatalf("first verification must report a new user, got %v", body)
	}
	token, _ := body["token"].(string)
	c := claims.Decode(token)
	if c.Subject == "" || c.HasName() || c.RoleOr("") != identity.RoleUser {
		t.Fatalf("unexpected claims %+v", c)
	}

	status, body = call(t, app, http.MethodPut, "/api/v1/users/me/name", `{"name":"Asha"}`, token)
	if status != http.StatusOK {
		t.Fatalf("set name: expected 200 got %d %v", status, body)
	}
	renamed, _ := body["token"].(string)
	if c := claims.Decode(renamed); c.Name == nil || *c.Name != "Asha" {
		t.Fatalf("expected renamed token to carry the name, got %+v", c)
	}

	status, body = call(t, app, http.MethodGet, "/api/v1/users/me", "", renamed)
	if status != http.StatusOK || body["name"] != "Asha" || body["phone"] != "+919876543210" {
		t.Fatalf("me: unexpected %d %v", status, body)
	}

	// A second login is no longer new.
	call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"+919876543210"}`, "")
	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"+919876543210","otp":"`+sms.lastCode(t)+`"}`, "")
	if status != http.StatusOK || body["isNewUser"] != false {
		t.Fatalf("returning user: unexpected %d %v", status, body)
	}
}

func TestConfiguredAdminRole(t *testing.T) {
	sms := &outbox{}
	app := newApp(t, routes.Deps{Cfg: testConfig(), Notifier: sms})

	call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"9000000001"}`, "")
	_, body := call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9000000001","otp":"`+sms.lastCode(t)+`"}`, "")
	token, _ := body["token"].(string)
	if role := claims.Decode(token).RoleOr(""); role != identity.RoleAdmin {
		t.Fatalf("expected ADMIN role claim, got %q", role)
	}
}

func TestVerifyErrors(t *testing.T) {
	sms := &outbox{}
	app := newApp(t, routes.Deps{Cfg: testConfig(), Notifier: sms})

	status, body := call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"12"}`, "")
	if status != http.StatusBadRequest || body["message"] != "Please enter a valid phone number" {
		t.Fatalf("invalid phone: unexpected %d %v", status, body)
	}

	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9876543210","otp":"12"}`, "")
	if status != http.StatusBadRequest {
		t.Fatalf("short code: expected 400 got %d %v", status, body)
	}

	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9876543210","otp":"123456"}`, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("no pending code: expected 401 got %d %v", status, body)
	}

	call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"9876543210"}`, "")
	wrong := "000000"
	if sms.lastCode(t) == wrong {
		wrong = "111111"
	}
	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9876543210","otp":"`+wrong+`"}`, "")
	if status != http.StatusUnauthorized || body["message"] != "Invalid OTP" {
		t.Fatalf("wrong code: unexpected %d %v", status, body)
	}

	status, _ = call(t, app, http.MethodPut, "/api/v1/users/me/name", `{"name":"Asha"}`, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("set name without token: expected 401 got %d", status)
	}
}

func TestRedisBackedOutboxAndRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := newApp(t, routes.Deps{Cfg: testConfig(), Cache: cache})

	status, body := call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"9876543210"}`, "")
	if status != http.StatusOK {
		t.Fatalf("send-otp: expected 200 got %d %v", status, body)
	}
	queued, err := mr.List(notification.OutboxKey)
	if err != nil || len(queued) != 1 {
		t.Fatalf("expected one queued sms, got %v (%v)", queued, err)
	}
	var msg notification.Message
	if err := json.Unmarshal([]byte(queued[0]), &msg); err != nil {
		t.Fatalf("decode outbox entry: %v", err)
	}
	if msg.Destination != "+919876543210" || msg.Kind != notification.KindVerificationCode {
		t.Fatalf("unexpected outbox entry %+v", msg)
	}

	status, body = call(t, app, http.MethodPost, "/api/v1/auth/verify-otp", `{"phone":"9876543210","otp":"`+codeFrom(msg.Body)+`"}`, "")
	if status != http.StatusOK {
		t.Fatalf("verify-otp: expected 200 got %d %v", status, body)
	}

	for i := 0; i < 2; i++ {
		call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"9876543210"}`, "")
	}
	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/send-otp", `{"phone":"9876543210"}`, "")
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected the fourth request in a minute to be limited, got %d", status)
	}

	status, body = call(t, app, http.MethodGet, "/healthz", "", "")
	if status != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d %v", status, body)
	}
}

func TestSetupRequiresBackendsOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	if err := routes.Setup(fiber.New(), routes.Deps{Cfg: cfg, Logger: logging.Discard()}); err == nil {
		t.Fatalf("expected production setup without backends to fail")
	}
}
