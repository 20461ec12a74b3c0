package ledgergate

import (
	"errors"
	"fmt"
)

// Sentinel rejections. Every failed transition resolves to exactly one of
// these; none is retryable by the core.
var (
	ErrInvalidInstruction  = errors.New("ledgergate: invalid instruction")
	ErrInvalidAccount      = errors.New("ledgergate: invalid account")
	ErrUnauthorized        = errors.New("ledgergate: unauthorized")
	ErrRateLimited         = errors.New("ledgergate: rate limited")
	ErrQuotaExceeded       = errors.New("ledgergate: quota exceeded")
	ErrInsufficientBalance = errors.New("ledgergate: insufficient prepaid balance")
	ErrAPIKeyMismatch      = errors.New("ledgergate: api key mismatch")
	ErrAlreadyInitialized  = errors.New("ledgergate: already initialized")
)

// ErrorCode maps a rejection to its stable protocol code. The second return
// is false for errors outside the rejection taxonomy (store failures etc).
func ErrorCode(err error) (uint32, bool) {
	switch {
	case errors.Is(err, ErrInvalidInstruction):
		return 0, true
	case errors.Is(err, ErrInvalidAccount):
		return 1, true
	case errors.Is(err, ErrUnauthorized):
		return 2, true
	case errors.Is(err, ErrRateLimited):
		return 3, true
	case errors.Is(err, ErrQuotaExceeded):
		return 4, true
	case errors.Is(err, ErrInsufficientBalance):
		return 5, true
	case errors.Is(err, ErrAPIKeyMismatch):
		return 6, true
	case errors.Is(err, ErrAlreadyInitialized):
		return 7, true
	}
	return 0, false
}

// TransitionError wraps a rejection with dispatch context.
type TransitionError struct {
	Op  string
	Err error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ledgergate: op=%s: %v", e.Op, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
