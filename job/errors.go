package job

import "errors"

// Pipeline error taxonomy. Only ErrValidation and ErrUnknownDemo are returned
// synchronously at submission; the rest are recorded against the Job.
var (
	ErrValidation       = errors.New("invalid parameters")
	ErrUnknownDemo      = errors.New("unknown demo")
	ErrSandboxLaunch    = errors.New("sandbox launch failed")
	ErrExecutionTimeout = errors.New("execution timed out")
	ErrComputation      = errors.New("computation failed")
	ErrProtocol         = errors.New("invalid runner output")
)

// Queue errors.
var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyTerminal   = errors.New("job already in terminal state")
)
