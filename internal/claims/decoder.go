// Package claims reads display claims out of a bearer token without
// verifying its signature. The server remains the only party that trusts
// the token; the client uses these fields for routing and display only.
package claims

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turfbook/turfbook/internal/identity"
)

// Claims is the decoded payload. The zero value is the empty claim set.
type Claims struct {
	Subject   string
	Name      *string
	Role      *identity.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsEmpty reports whether nothing was decoded.
func (c Claims) IsEmpty() bool {
	return c.Subject == "" && c.Name == nil && c.Role == nil && c.IssuedAt.IsZero() && c.ExpiresAt.IsZero()
}

// RoleOr returns the role claim, or fallback when the token carries none.
func (c Claims) RoleOr(fallback identity.Role) identity.Role {
	if c.Role == nil {
		return fallback
	}
	return *c.Role
}

// HasName reports whether a non-empty name claim is present.
func (c Claims) HasName() bool {
	return c.Name != nil
}

type payload struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Decoder decodes tokens and logs malformed input as a diagnostic.
type Decoder struct {
	logger *slog.Logger
	parser *jwt.Parser
}

// NewDecoder builds a Decoder. A nil logger disables diagnostics.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger, parser: jwt.NewParser()}
}

// Decode never fails: malformed tokens yield the empty claim set.
func (d *Decoder) Decode(token string) Claims {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		d.debug("token is not a three segment structure", nil)
		return Claims{}
	}

	var p payload
	// An unknown or missing alg only matters for verification; the payload
	// has already been decoded by then.
	if _, _, err := d.parser.ParseUnverified(token, &p); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		d.debug("token payload could not be decoded", err)
		return Claims{}
	}

	out := Claims{Subject: p.Subject}
	if name := strings.TrimSpace(p.Name); name != "" {
		out.Name = &name
	}
	if p.Role != "" {
		if role, ok := identity.ParseRole(p.Role); ok {
			out.Role = &role
		} else {
			d.debug("token carries an unknown role", nil, slog.String("role", p.Role))
		}
	}
	if p.IssuedAt != nil {
		out.IssuedAt = p.IssuedAt.Time
	}
	if p.ExpiresAt != nil {
		out.ExpiresAt = p.ExpiresAt.Time
	}
	return out
}

// MergeInto overlays claim-derived fields onto a copy of id. Only the name
// is merged: a present name claim always supersedes the cached name.
func (d *Decoder) MergeInto(id *identity.Identity) *identity.Identity {
	if id == nil {
		return nil
	}
	out := id.Clone()
	c := d.Decode(out.Token)
	if c.Name != nil {
		out.Name = identity.StringPtr(*c.Name)
	}
	return out
}

func (d *Decoder) debug(msg string, err error, attrs ...any) {
	if d == nil || d.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	d.logger.Debug("claims: "+msg, attrs...)
}

var defaultDecoder = NewDecoder(nil)

// Decode decodes token with a silent decoder.
func Decode(token string) Claims {
	return defaultDecoder.Decode(token)
}
