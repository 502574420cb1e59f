package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrTokenNotFound         = errors.New("reset token not found")
	ErrTokenExpired          = errors.New("reset token expired")
	ErrTokenConsumed         = errors.New("reset token already consumed")
	ErrStorageUnavailable    = errors.New("reset token storage unavailable")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
	ErrInvalidAccount        = errors.New("account id is required")

	// errIssueConflict is returned by a store when a concurrent issue for the same account
	// (or a lookup hash collision) won the race. Issue retries with a fresh secret.
	errIssueConflict = errors.New("concurrent reset token issue")
)

// IsInvalidToken reports whether err is one of the token kinds that callers must present
// to users as a single generic failure.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenConsumed)
}

func storageError(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// resultLabel is the consume outcome used for metrics and logs.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenConsumed):
		return "consumed"
	default:
		return "error"
	}
}
