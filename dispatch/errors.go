package dispatch

import (
	"errors"
	"fmt"
)

// Setup errors, one per resolution step of New.
var (
	ErrDeviceUnavailable        = errors.New("dispatch: no compute device available")
	ErrLibraryUnavailable       = errors.New("dispatch: kernel library unavailable")
	ErrQueueUnavailable         = errors.New("dispatch: command queue unavailable")
	ErrCommandBufferUnavailable = errors.New("dispatch: command buffer unavailable")
	ErrEncoderUnavailable       = errors.New("dispatch: command encoder unavailable")
	ErrKernelNotFound           = errors.New("dispatch: kernel not found")
	ErrPipelineBuild            = errors.New("dispatch: pipeline build failed")
)

// Binding and lifecycle errors.
var (
	ErrCountMismatch = errors.New("dispatch: array element count mismatch")
	ErrAllocation    = errors.New("dispatch: buffer allocation failed")
	ErrInvalidLayout = errors.New("dispatch: invalid element layout")
	ErrEmptyGrid     = errors.New("dispatch: no elements to launch")
	ErrNotLaunched   = errors.New("dispatch: kernel has not completed")
	ErrSpent         = errors.New("dispatch: engine already launched")
)

func setupError(sentinel error, kernel string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w (kernel %q)", sentinel, kernel)
	}
	return fmt.Errorf("%w (kernel %q): %w", sentinel, kernel, cause)
}

// Stage is the point at which a launch failed.
type Stage int

const (
	// StageAllocation: the result array could not be allocated.
	StageAllocation Stage = iota + 1
	// StageSubmission: the device refused the encoded work.
	StageSubmission
	// StageDevice: the kernel faulted while executing.
	StageDevice
)

func (s Stage) String() string {
	switch s {
	case StageAllocation:
		return "allocation"
	case StageSubmission:
		return "submission"
	case StageDevice:
		return "device execution"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// LaunchError is returned by Launch when the kernel produced no result.
type LaunchError struct {
	Kernel string
	Stage  Stage
	Err    error
}

func (err *LaunchError) Error() string {
	return fmt.Sprintf("dispatch: launching %q failed during %s: %s", err.Kernel, err.Stage, err.Err)
}

func (err *LaunchError) Unwrap() error {
	return err.Err
}
