package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
)

// dangerousPatterns are literal commands the executor refuses regardless of
// AllowShell. This is a narrow blocklist, not a sandbox.
var dangerousPatterns = []string{
	"rm -rf /",
	"dd if=/dev/zero",
	":(){:|:&};:",
}

// Executor runs one task's shell command with a captured-output, wall-clock
// timeout race. It holds no task state between calls.
type Executor struct {
	workDir    string
	allowShell bool
}

func NewExecutor(workDir string, allowShell bool) *Executor {
	return &Executor{workDir: workDir, allowShell: allowShell}
}

var ErrShellDisabled = errors.New("worker: shell execution is disabled")

// Validate reports whether command is safe to run: shell execution must be
// enabled and the command must not match a dangerous literal pattern.
func (e *Executor) Validate(command string) error {
	if !e.allowShell {
		return ErrShellDisabled
	}
	for _, p := range dangerousPatterns {
		if strings.Contains(command, p) {
			return errors.New("worker: command matches a disallowed pattern")
		}
	}
	return nil
}

// Execute runs t.Command under sh -c, enforcing t.Timeout as a wall-clock
// limit. It always returns a TaskResult; a disallowed command yields a
// StatusFailed result without ever spawning a process.
func (e *Executor) Execute(ctx context.Context, workerID string, t *protocol.Task) *protocol.TaskResult {
	log := logger.WithTask(t.ID)

	if err := e.Validate(t.Command); err != nil {
		log.Warn().Err(err).Msg("command rejected before execution")
		return &protocol.TaskResult{
			TaskID:      t.ID,
			WorkerID:    workerID,
			Status:      protocol.StatusFailed,
			Stderr:      err.Error(),
			CompletedAt: time.Now().Unix(),
		}
	}

	timeout := time.Duration(t.Timeout) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", t.Command)
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(), envSlice(t.Env)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &protocol.TaskResult{
		TaskID:      t.ID,
		WorkerID:    workerID,
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		DurationMs:  uint64(duration.Milliseconds()),
		CompletedAt: time.Now().Unix(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Status = protocol.StatusTimedOut
		result.Stderr = stderr.String() + "\ntimed out after " + strconv.FormatUint(t.Timeout, 10) + " seconds"
		result.DurationMs = t.Timeout * 1000
		log.Warn().Uint64("timeout_s", t.Timeout).Msg("task timed out")
		return result
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code := int32(exitErr.ExitCode())
			result.ExitCode = &code
		}
		result.Status = protocol.StatusFailed
		log.Warn().Err(runErr).Msg("task exited with error")
		return result
	}

	zero := int32(0)
	result.ExitCode = &zero
	result.Status = protocol.StatusCompleted
	log.Info().Dur("duration", duration).Msg("task completed")
	return result
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

