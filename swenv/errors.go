package swenv

import "errors"

var (
	// ErrNotRegistered is returned when an operation needs a registered script and there is none.
	ErrNotRegistered = errors.New("no script registered yet")

	// ErrInvalidState is returned for an illegal lifecycle transition, or for a functional event
	// triggered before the worker is activated.
	ErrInvalidState = errors.New("invalid ServiceWorker state")

	// ErrScript wraps failures of the Executor.
	ErrScript = errors.New("ServiceWorker script failed")
)
