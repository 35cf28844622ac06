package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a compilation job.
type JobStatus string

const (
	StatusQueued    JobStatus = "QUEUED"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusTimedOut  JobStatus = "TIMED_OUT"
	StatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// PowerPoles selects the power pole type the compiler places in the layout.
type PowerPoles string

const (
	PolesSmall      PowerPoles = "small"
	PolesMedium     PowerPoles = "medium"
	PolesBig        PowerPoles = "big"
	PolesSubstation PowerPoles = "substation"
)

// IsValid checks if the power pole type is recognized. Empty means
// "compiler default".
func (p PowerPoles) IsValid() bool {
	switch p {
	case "", PolesSmall, PolesMedium, PolesBig, PolesSubstation:
		return true
	}
	return false
}

// LogLevel controls the verbosity of the compiler's log output.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// IsValid checks if the log level is recognized. Empty means "info".
func (l LogLevel) IsValid() bool {
	switch l {
	case "", LogDebug, LogInfo, LogWarning, LogError:
		return true
	}
	return false
}

// CompileOptions enumerates every recognized compiler option. Validation
// happens once at the boundary, never inside the session.
type CompileOptions struct {
	BlueprintName string     `json:"blueprintName,omitempty"`
	PowerPoles    PowerPoles `json:"powerPoles,omitempty"`
	NoOptimize    bool       `json:"noOptimize,omitempty"`
	JSONOutput    bool       `json:"jsonOutput,omitempty"`
	LogLevel      LogLevel   `json:"logLevel,omitempty"`
}

// CompileRequest is an accepted compilation request. Immutable once it
// passes Validate.
type CompileRequest struct {
	Source  string         `json:"source"`
	Options CompileOptions `json:"options"`
}

// suspiciousSourcePatterns flags shell-injection attempts. The compiler is
// invoked without a shell, so these can never actually expand, but a
// source file full of command substitutions is not a Facto program either.
var suspiciousSourcePatterns = []*regexp.Regexp{
	regexp.MustCompile("`[^`]*`"),
	regexp.MustCompile(`\$\([^)]*\)`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`(?i);\s*rm\s`),
	regexp.MustCompile(`(?i)\|\s*(sh|bash)\b`),
}

// Validate checks the request against maxSourceBytes and the option enums.
// It also strips null bytes from the source in place.
func (r *CompileRequest) Validate(maxSourceBytes int) error {
	if strings.TrimSpace(r.Source) == "" {
		return ErrEmptySource
	}
	if len(r.Source) > maxSourceBytes {
		return ErrSourceTooLarge
	}
	r.Source = strings.ReplaceAll(r.Source, "\x00", "")
	for _, p := range suspiciousSourcePatterns {
		if p.MatchString(r.Source) {
			return ErrSuspiciousSource
		}
	}
	if !r.Options.PowerPoles.IsValid() {
		return ErrInvalidPowerPoles
	}
	if !r.Options.LogLevel.IsValid() {
		return ErrInvalidLogLevel
	}
	return nil
}

// JobInfo is a queryable snapshot of a job's lifecycle record.
type JobInfo struct {
	ID         uuid.UUID `json:"job_id"`
	Status     JobStatus `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// SyncResult is the aggregate outcome returned by the synchronous
// delivery mode: the full ordered log plus the final blueprint-or-error.
type SyncResult struct {
	Success    bool      `json:"success"`
	Status     JobStatus `json:"status"`
	Blueprint  string    `json:"blueprint,omitempty"`
	Error      string    `json:"error,omitempty"`
	Log        []string  `json:"log"`
	DurationMs int64     `json:"duration_ms"`
}
