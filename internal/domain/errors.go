package domain

import "errors"

var (
	// ErrEmptySource is returned when the source is empty or whitespace-only.
	ErrEmptySource = errors.New("source code cannot be empty")

	// ErrSourceTooLarge is returned when the source exceeds the size limit.
	ErrSourceTooLarge = errors.New("source code exceeds maximum length")

	// ErrSuspiciousSource is returned when the source contains shell
	// injection patterns.
	ErrSuspiciousSource = errors.New("source contains potentially malicious content")

	// ErrInvalidPowerPoles is returned for an unrecognized power pole type.
	ErrInvalidPowerPoles = errors.New("invalid power pole type")

	// ErrInvalidLogLevel is returned for an unrecognized log level.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrQueueFull is returned when the waiting list is at capacity.
	ErrQueueFull = errors.New("compilation queue is full, try again later")

	// ErrShuttingDown is returned when the server no longer accepts jobs.
	ErrShuttingDown = errors.New("server is shutting down")

	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
)
