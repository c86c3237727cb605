package server

import (
	"errors"
	"fmt"
)

// Bootstrap stages, in the order they run.
const (
	StageHeap      = "heap"
	StageTimer     = "timer"
	StageQueue     = "queue"
	StageRegister  = "register"
	StageStorage   = "storage"
	StageGate      = "gate"
	StageCoherency = "coherency"
	StageWatch     = "watch"
)

// BootstrapError reports a failed bootstrap stage. Status is the negative
// value the process exits with.
type BootstrapError struct {
	Stage  string
	Status int32
	Err    error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s failed (status %d): %v", e.Stage, e.Status, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// ExitStatus extracts the bootstrap status from err, or -1 for any other
// error.
func ExitStatus(err error) int32 {
	var be *BootstrapError
	if errors.As(err, &be) {
		return be.Status
	}
	return -1
}
