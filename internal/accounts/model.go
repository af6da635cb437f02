package accounts

import (
	"time"

	"github.com/turfbook/turfbook/internal/identity"
)

// Account is a phone-keyed user record on the server.
type Account struct {
	ID        string
	Phone     string
	Name      string
	Role      identity.Role
	CreatedAt time.Time
	LastLogin time.Time
}
