package core

import (
	"errors"
)

var (
	// ErrPoolExhausted is returned when the descriptor pool cannot satisfy a
	// new allocation. Retrying is a caller decision; the cache never retries.
	ErrPoolExhausted = errors.New("descriptor pool exhausted")
	// ErrDeviceLost indicates a fatal GPU error during submission or a fence
	// wait. There is no recovery path inside the engine.
	ErrDeviceLost = errors.New("device lost")
	// ErrFenceTimeout is returned when a fence wait exceeds the configured
	// upload fence timeout. Treated as fatal, same as a lost device.
	ErrFenceTimeout = errors.New("fence wait timed out")
	// ErrLayoutConflict is returned by the descriptor cache (debug checks only)
	// when the same binding contents are presented under two different layouts.
	ErrLayoutConflict = errors.New("binding set presented under conflicting layouts")
	// ErrUploaderDestroyed is returned when an uploader is used after Destroy.
	ErrUploaderDestroyed = errors.New("uploader already destroyed")
)
