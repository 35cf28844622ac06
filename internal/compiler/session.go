// Package compiler owns one subprocess invocation of the external Facto
// compiler per job: it starts the process, relays its output incrementally,
// enforces the deadline, and maps the outcome to a terminal job status.
package compiler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Snagnar/facto.github.io/internal/domain"
	"github.com/Snagnar/facto.github.io/internal/queue"
)

var _ queue.Runner = (*Session)(nil)

const (
	// maxBlueprintBytes caps stdout to prevent memory exhaustion from a
	// misbehaving compiler.
	maxBlueprintBytes = 1 << 20 // 1 MB

	// maxLogLineBytes bounds a single stderr line.
	maxLogLineBytes = 64 * 1024

	// statusPrefix marks a stderr line as a compilation phase description
	// rather than plain log output.
	statusPrefix = "==> "
)

// Session invokes the factompile binary. One subprocess per job, started
// fresh and fully torn down; a crashed compilation cannot leak state into
// the next one.
type Session struct {
	binPath string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSession creates a session factory for the given compiler binary.
// timeout is only used for error messages; the caller's context carries
// the actual deadline.
func NewSession(binPath string, timeout time.Duration, logger *zap.Logger) *Session {
	return &Session{
		binPath: binPath,
		timeout: timeout,
		logger:  logger,
	}
}

// Run compiles req to a terminal status. Every event is forwarded to emit
// the instant it is produced. Exactly one of blueprint/error is emitted;
// the caller appends the terminal end event.
func (s *Session) Run(ctx context.Context, req *domain.CompileRequest, emit func(domain.CompileEvent)) domain.JobStatus {
	emit(domain.StatusEvent("Starting compilation..."))

	workDir, err := os.MkdirTemp("", "facto-*")
	if err != nil {
		emit(domain.ErrorEvent("internal error: " + err.Error()))
		return domain.StatusFailed
	}
	defer os.RemoveAll(workDir)

	srcPath := filepath.Join(workDir, "main.facto")
	if err := os.WriteFile(srcPath, []byte(req.Source), 0o644); err != nil {
		emit(domain.ErrorEvent("internal error: " + err.Error()))
		return domain.StatusFailed
	}

	args := BuildArgs(srcPath, req.Options)
	emit(domain.LogEvent("Running: " + s.binPath + " " + strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, s.binPath, args...)
	cmd.Dir = workDir
	// Own process group so timeout and cancel take down compiler children
	// too; a surviving child would hold the stderr pipe open and stall
	// the line reader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}

	var stdout limitedBuffer
	stdout.limit = maxBlueprintBytes
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		emit(domain.ErrorEvent("internal error: " + err.Error()))
		return domain.StatusFailed
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			emit(domain.ErrorEvent(fmt.Sprintf("Compiler not found: %q is not installed or not in PATH", s.binPath)))
			emit(domain.LogEvent("Install factompile: pip install factompile"))
		} else {
			emit(domain.ErrorEvent("Failed to start compiler: " + err.Error()))
		}
		return domain.StatusFailed
	}

	// Relay stderr line by line as it arrives. cmd.Wait closes the pipe,
	// so the scan loop must finish before Wait is called.
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxLogLineBytes)
	for scanner.Scan() {
		emit(classifyLine(scanner.Text()))
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	s.killProcessGroup(cmd)

	s.logger.Debug("compiler exited",
		zap.Duration("elapsed", elapsed),
		zap.Error(waitErr),
	)

	switch ctx.Err() {
	case context.DeadlineExceeded:
		emit(domain.ErrorEvent(fmt.Sprintf("Compilation timed out after %s", s.timeout)))
		return domain.StatusTimedOut
	case context.Canceled:
		emit(domain.ErrorEvent("Compilation cancelled"))
		return domain.StatusCancelled
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			emit(domain.StatusEvent(fmt.Sprintf("Compilation failed (exit code %d)", exitErr.ExitCode())))
			emit(domain.ErrorEvent("Compilation failed. See log output for details."))
		} else {
			emit(domain.ErrorEvent("Compiler failed: " + waitErr.Error()))
		}
		return domain.StatusFailed
	}

	blueprint := strings.TrimSpace(stdout.String())
	if blueprint == "" {
		emit(domain.ErrorEvent("Compiler produced no blueprint output"))
		return domain.StatusFailed
	}

	emit(domain.StatusEvent("Compilation successful!"))
	emit(domain.BlueprintEvent(blueprint))
	return domain.StatusCompleted
}

// killProcessGroup sweeps up any children the compiler left behind. The
// main process is already dead once Wait has returned.
func (s *Session) killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// classifyLine sorts a stderr line into a status or log event. Phase
// markers are prefixed "==> "; everything else is log output.
func classifyLine(line string) domain.CompileEvent {
	if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, statusPrefix) {
		return domain.StatusEvent(strings.TrimPrefix(trimmed, statusPrefix))
	}
	return domain.LogEvent(line)
}

// limitedBuffer is a bytes.Buffer that silently discards writes past a
// limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.truncated {
		return len(p), nil
	}
	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}
	orig := len(p)
	if len(p) > remaining {
		lb.truncated = true
		p = p[:remaining]
	}
	if n, err := lb.buf.Write(p); err != nil {
		return n, err
	}
	return orig, nil
}

func (lb *limitedBuffer) String() string {
	return lb.buf.String()
}
