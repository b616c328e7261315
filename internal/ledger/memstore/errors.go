package memstore

import (
	"errors"
	"fmt"
)

var errReadOnly = errors.New("memstore: write in read-only transaction")

// duplicateKeyError mirrors a unique violation from a SQL backend.
type duplicateKeyError struct {
	userID int64
	code   string
}

func (e *duplicateKeyError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("memstore: duplicate code %q", e.code)
	}
	return fmt.Sprintf("memstore: duplicate participant %d", e.userID)
}
