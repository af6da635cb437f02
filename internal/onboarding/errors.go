package onboarding

import (
	"errors"
	"fmt"

	"github.com/turfbook/turfbook/internal/apiclient"
)

// Generic messages used when the server does not provide one.
const (
	MsgSendFailed    = "Failed to send OTP. Please try again."
	MsgVerifyFailed  = "Verification failed. Please try again."
	MsgSessionFailed = "Could not save your session. Please try again."
)

// ErrInvalidTransition is returned when an action is not allowed in the current step.
var ErrInvalidTransition = errors.New("onboarding: invalid transition")

// ValidationError is a local input rejection; no network call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UserMessage turns err into text fit for display: the validation message,
// the server's message, or fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if msg := apiclient.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
