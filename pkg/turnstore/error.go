package turnstore

import (
	"errors"
	"fmt"
)

// ErrLockHeld is returned by lock-guarded operations when another owner
// holds the cooperative lock. Callers back off and retry.
var ErrLockHeld = errors.New("cooperative lock held by another owner")

// ErrNotFound is returned when a turn doesn't exist in the store.
type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	if e.ID == 0 {
		return "turn not found"
	}

	return fmt.Sprintf("turn not found: %d", e.ID)
}
