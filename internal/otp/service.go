// Package otp issues and checks one-time verification codes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/turfbook/turfbook/internal/notification"
)

// CodeLength is the number of digits in a code.
const CodeLength = 6

var (
	// ErrInvalidCode is returned for a wrong code.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrExpired is returned when no live code exists for the phone.
	ErrExpired = errors.New("otp: code expired or not requested")
	// ErrTooManyAttempts is returned once the attempt budget is spent.
	ErrTooManyAttempts = errors.New("otp: too many incorrect attempts")
)

// Service issues codes, delivers them and verifies them.
type Service struct {
	store       Store
	notifier    notification.Notifier
	ttl         time.Duration
	maxAttempts int
	cost        int
	generate    func() (string, error)
}

// NewService builds an OTP service.
func NewService(store Store, notifier notification.Notifier, ttl time.Duration, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		cost:        bcrypt.DefaultCost,
		generate:    randomCode,
	}
}

// Issue replaces any pending code for phone with a fresh one and sends it.
func (s *Service) Issue(ctx context.Context, phone string) error {
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	if err := s.store.Save(ctx, phone, hash, s.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindVerificationCode,
		Destination: phone,
		Body:        fmt.Sprintf("Your TurfBook verification code is %s", code),
	})
}

// Verify consumes the pending code for phone when code matches.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	rec, err := s.store.Load(ctx, phone)
	if errors.Is(err, errNoCode) {
		return ErrExpired
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if rec.Attempts >= s.maxAttempts {
		_ = s.store.Delete(ctx, phone)
		return ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword(rec.Hash, []byte(code)) != nil {
		attempts, err := s.store.IncrementAttempts(ctx, phone)
		if err == nil && attempts >= s.maxAttempts {
			_ = s.store.Delete(ctx, phone)
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}
	return s.store.Delete(ctx, phone)
}

func randomCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
