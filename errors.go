package plantcam

import (
	"errors"
	"fmt"
)

// Kinds of failure. Every one of them ends a run.
var (
	ErrConfig         = errors.New("config error")
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceOpen     = errors.New("device open error")
	ErrCapture        = errors.New("capture error")
	ErrCropBounds     = errors.New("crop bounds error")
	ErrPersist        = errors.New("persist error")
	ErrUpload         = errors.New("upload error")
)

// StageError is returned by a run that failed. It records the last state the
// run reached, the kind of failure and the underlying cause.
type StageError struct {
	State State // Last state reached before the failure.
	Kind  error // One of the Err* kinds above.
	Err   error
}

// Error returns a description including the stage and the cause.
func (e *StageError) Error() string {
	return fmt.Sprintf("after %s: %v: %v", e.State, e.Kind, e.Err)
}

// Unwrap lets errors.Is match both the kind and the cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Ensure StageError implements the error interface.
var _ error = (*StageError)(nil)

// State is a step of the snapshot pipeline. A run moves through the states in
// order, or jumps to Failed.
type State int

// States of a run, in order.
const (
	StateStart State = iota
	StateConfigLoaded
	StateDeviceSelected
	StateStreamOpened
	StateFrameCaptured
	StateCropped
	StatePersisted
	StatePublished
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"start",
	"config-loaded",
	"device-selected",
	"stream-opened",
	"frame-captured",
	"cropped",
	"persisted",
	"published",
	"done",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}
