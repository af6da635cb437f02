// Package apiclient talks to the turf booking API for the calls the
// onboarding and profile flows need.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Message is the server's message, if any.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

var (
	// ErrNoToken is returned by authenticated calls when no bearer token is available.
	ErrNoToken = errors.New("apiclient: no bearer token")
	// ErrMissingToken is returned when a verification succeeds without issuing a token.
	ErrMissingToken = errors.New("apiclient: verification response did not include a token")
)

// Verification is the result of a successful code check.
type Verification struct {
	Token     string `json:"token"`
	IsNewUser bool   `json:"isNewUser"`
}

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource func() string

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every call. Timeouts surface as ordinary errors.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource sets where authenticated calls read the bearer token from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// Client is a thin JSON client for the API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  TokenSource
}

// New builds a Client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendVerificationCode asks the API to text a one-time code to phone.
func (c *Client) SendVerificationCode(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodPost, "/auth/send-otp", false, map[string]string{"phone": phone}, nil)
}

// VerifyCode exchanges phone and code for a bearer token.
func (c *Client) VerifyCode(ctx context.Context, phone, code string) (Verification, error) {
	var out Verification
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp", false, map[string]string{"phone": phone, "otp": code}, &out); err != nil {
		return Verification{}, err
	}
	if out.Token == "" {
		return Verification{}, ErrMissingToken
	}
	return out, nil
}

// SetDisplayName updates the authenticated user's name and returns the
// reissued token carrying it. The token is empty if the server sent none.
func (c *Client) SetDisplayName(ctx context.Context, name string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPut, "/users/me/name", true, map[string]string{"name": name}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := ""
		if c.tokens != nil {
			token = c.tokens()
		}
		if token == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// MessageOf returns the server-provided message carried by err, if any.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
