package device

import (
	"github.com/nvr-ai/go-npubench/workload"
	"github.com/pkg/errors"
)

// Error sentinels.
var (
	// ErrInitialization is wrapped by every failure to open a Session.
	ErrInitialization = errors.New("device initialization failed")
	// ErrUnsupportedConfiguration is returned for descriptors or core masks the device
	// cannot serve.
	ErrUnsupportedConfiguration = workload.ErrUnsupportedConfiguration
	// ErrUnknownContext is returned by drivers for handles they did not create.
	ErrUnknownContext = errors.New("unknown context")
)

// Session open stages.
const (
	StageValidate      = "validate"
	StageCreateContext = "create_context"
	StageSetCoreMask   = "set_core_mask"
	StageCreateMem     = "create_mem"
	StageBindMem       = "bind_mem"
)

// InitError reports the stage at which opening a Session failed.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return ErrInitialization.Error() + " at " + e.Stage + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *InitError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInitialization) hold for every InitError.
func (e *InitError) Is(target error) bool { return target == ErrInitialization }

func initError(stage string, err error) error {
	return &InitError{Stage: stage, Err: err}
}
