package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/turfbook/turfbook/internal/accounts"
	"github.com/turfbook/turfbook/internal/otp"
)

// ErrInvalidPhone is returned for numbers the validator rejects.
var ErrInvalidPhone = errors.New("invalid phone number")

// PhoneValidator canonicalizes phone input.
type PhoneValidator interface {
	IsValid(input string) bool
	ToCanonical(input string) string
}

// Service implements the phone verification endpoints.
type Service struct {
	phones   PhoneValidator
	codes    *otp.Service
	accounts *accounts.Service
	tokens   *TokenIssuer
}

// NewService wires the verification service.
func NewService(phones PhoneValidator, codes *otp.Service, accts *accounts.Service, tokens *TokenIssuer) *Service {
	return &Service{phones: phones, codes: codes, accounts: accts, tokens: tokens}
}

// Verification is returned after a successful code check.
type Verification struct {
	Token     string `json:"token"`
	IsNewUser bool   `json:"isNewUser"`
}

// SendCode issues a code for phone.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	canonical, err := s.canonical(phone)
	if err != nil {
		return err
	}
	return s.codes.Issue(ctx, canonical)
}

// Verify checks code and returns a token for the (possibly new) account.
// Accounts without a name are reported as new so the client collects one.
func (s *Service) Verify(ctx context.Context, phone, code string) (Verification, error) {
	canonical, err := s.canonical(phone)
	if err != nil {
		return Verification{}, err
	}
	if err := s.codes.Verify(ctx, canonical, code); err != nil {
		return Verification{}, err
	}
	account, created, err := s.accounts.FindOrCreate(ctx, canonical)
	if err != nil {
		return Verification{}, fmt.Errorf("load account: %w", err)
	}
	token, _, err := s.tokens.Mint(account)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Token: token, IsNewUser: created || account.Name == ""}, nil
}

// Rename sets the account name and returns a token carrying it.
func (s *Service) Rename(ctx context.Context, accountID, name string) (string, error) {
	account, err := s.accounts.Rename(ctx, accountID, name)
	if err != nil {
		return "", err
	}
	token, _, err := s.tokens.Mint(account)
	return token, err
}

// Me returns the account behind accountID.
func (s *Service) Me(ctx context.Context, accountID string) (accounts.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

func (s *Service) canonical(phone string) (string, error) {
	if !s.phones.IsValid(phone) {
		return "", ErrInvalidPhone
	}
	return s.phones.ToCanonical(phone), nil
}
