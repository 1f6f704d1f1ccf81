package driver

import (
	"errors"
	"fmt"
)

// Local invariant errors, raised before any native call is made.
var (
	// ErrInvalidMemoryAllocation is returned when a requested allocation
	// would be zero bytes or its size arithmetic overflows.
	ErrInvalidMemoryAllocation = errors.New("invalid memory allocation")

	// ErrNullPointer is returned when a free targets a null pointer.
	ErrNullPointer = errors.New("cannot free null pointer")

	// ErrNotDeviceCopy is returned when a type cannot be placed in
	// device-reachable memory.
	ErrNotDeviceCopy = errors.New("type is not device-copyable")

	// ErrDriverUnavailable is returned by driver builds that were compiled
	// without native support.
	ErrDriverUnavailable = errors.New("native driver not available in this build")
)

// Code is a native driver result code, passed through unchanged. The values
// mirror the CUDA driver API's CUresult.
type Code int

const (
	Success               Code = 0
	ErrorInvalidValue     Code = 1
	ErrorOutOfMemory      Code = 2
	ErrorNotInitialized   Code = 3
	ErrorDeinitialized    Code = 4
	ErrorNoDevice         Code = 100
	ErrorInvalidDevice    Code = 101
	ErrorInvalidImage     Code = 200
	ErrorInvalidContext   Code = 201
	ErrorMapFailed        Code = 205
	ErrorUnmapFailed      Code = 206
	ErrorNoBinaryForGPU   Code = 209
	ErrorNotFound         Code = 500
	ErrorNotReady         Code = 600
	ErrorIllegalAddress   Code = 700
	ErrorLaunchOutOfRes   Code = 701
	ErrorLaunchTimeout    Code = 702
	ErrorLaunchFailed     Code = 719
	ErrorContextIsDestroy Code = 709
	ErrorUnknown          Code = 999
)

var codeNames = map[Code]string{
	Success:               "CUDA_SUCCESS",
	ErrorInvalidValue:     "CUDA_ERROR_INVALID_VALUE",
	ErrorOutOfMemory:      "CUDA_ERROR_OUT_OF_MEMORY",
	ErrorNotInitialized:   "CUDA_ERROR_NOT_INITIALIZED",
	ErrorDeinitialized:    "CUDA_ERROR_DEINITIALIZED",
	ErrorNoDevice:         "CUDA_ERROR_NO_DEVICE",
	ErrorInvalidDevice:    "CUDA_ERROR_INVALID_DEVICE",
	ErrorInvalidImage:     "CUDA_ERROR_INVALID_IMAGE",
	ErrorInvalidContext:   "CUDA_ERROR_INVALID_CONTEXT",
	ErrorMapFailed:        "CUDA_ERROR_MAP_FAILED",
	ErrorUnmapFailed:      "CUDA_ERROR_UNMAP_FAILED",
	ErrorNoBinaryForGPU:   "CUDA_ERROR_NO_BINARY_FOR_GPU",
	ErrorNotFound:         "CUDA_ERROR_NOT_FOUND",
	ErrorNotReady:         "CUDA_ERROR_NOT_READY",
	ErrorIllegalAddress:   "CUDA_ERROR_ILLEGAL_ADDRESS",
	ErrorLaunchOutOfRes:   "CUDA_ERROR_LAUNCH_OUT_OF_RESOURCES",
	ErrorLaunchTimeout:    "CUDA_ERROR_LAUNCH_TIMEOUT",
	ErrorLaunchFailed:     "CUDA_ERROR_LAUNCH_FAILED",
	ErrorContextIsDestroy: "CUDA_ERROR_CONTEXT_IS_DESTROYED",
	ErrorUnknown:          "CUDA_ERROR_UNKNOWN",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CUDA_ERROR(%d)", int(c))
}

// Error wraps a native result code together with the operation that
// produced it.
type Error struct {
	Code Code
	Op   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Is reports equality by code, so callers can match against
// &driver.Error{Code: driver.ErrorOutOfMemory} with errors.Is.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

// Errorf builds a driver error for op if code is not Success, nil otherwise.
func Errorf(op string, code Code) error {
	if code == Success {
		return nil
	}
	return &Error{Code: code, Op: op}
}
