package service

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned when the store could not be reached
// within the guardian's probe budget. Batches hitting it are spilled to
// the failure queue rather than dropped.
var ErrStoreUnavailable = errors.New("store unavailable")

// IdentityMismatchError marks a batch whose user_id is already bound to
// a different username. The batch is rejected fail-closed, without
// touching any instances or trades, and preserved in the failure queue
// for inspection.
type IdentityMismatchError struct {
	UserID   string
	Stored   string
	Incoming string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("identity mismatch for user %s: stored username %q, incoming %q",
		e.UserID, e.Stored, e.Incoming)
}
