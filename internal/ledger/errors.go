package ledger

import (
	"errors"
	"fmt"
)

// Business outcomes. These are expected results, compared with errors.Is,
// and never logged as errors.
var (
	ErrNotRegistered   = errors.New("not registered")
	ErrUnknownCode     = errors.New("unknown code")
	ErrAlreadyRedeemed = errors.New("code already redeemed")
	ErrNotFoundTarget  = errors.New("target not registered")

	// ErrPointsOutOfRange rejects an update whose balance would not fit
	// in an int64. The transaction rolls back.
	ErrPointsOutOfRange = errors.New("points out of range")
)

// AddPoints returns balance + delta, or ErrPointsOutOfRange when the sum
// overflows int64.
func AddPoints(balance, delta int64) (int64, error) {
	sum := balance + delta
	if (delta > 0 && sum < balance) || (delta < 0 && sum > balance) {
		return balance, ErrPointsOutOfRange
	}
	return sum, nil
}

// ErrStorageUnavailable matches every *StorageError.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError reports a transport or transaction failure for one operation.
// It is never retried by the ledger.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStorageUnavailable, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// Unavailable wraps err as a StorageError unless it is nil, already a
// StorageError, or one of the business outcomes above.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || isOutcome(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isOutcome(err error) bool {
	return errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrUnknownCode) ||
		errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrNotFoundTarget) ||
		errors.Is(err, ErrPointsOutOfRange)
}
