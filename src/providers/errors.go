package providers

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrProviderAuth          = errors.New("provider rejected credentials")
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrProviderSchema        = errors.New("unexpected provider response")
	ErrMissingCategoryConfig = errors.New("no default category configured for account")
	ErrUnknownProvider       = errors.New("no provider registered for bank")
)

// ProviderError carries the failure kind plus enough context to find the
// offending call in the logs. errors.Is matches both Kind and Err.
type ProviderError struct {
	Kind    error
	Bank    string
	Account uuid.UUID
	Op      string
	Status  int
	Payload []byte
	Err     error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Bank, e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Bank, e.Op, e.Kind)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus classifies a non-2xx HTTP status.
func KindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrProviderAuth
	case status == 429 || status >= 500:
		return ErrProviderUnavailable
	default:
		return ErrProviderSchema
	}
}
