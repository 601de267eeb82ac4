package rounds

import (
	"errors"

	"bracket-app/internal/quota"
	"bracket-app/internal/store"
)

var (
	ErrNotFound             = store.ErrNotFound
	ErrQuotaExceeded        = quota.ErrQuotaExceeded
	ErrConflictingState     = store.ErrConflict
	ErrTransactionFailure   = store.ErrTransactionFailed
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// Retryable reports whether the whole operation may be attempted again.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransactionFailure)
}
