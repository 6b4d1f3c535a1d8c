package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/coordinator/internal/protocol"
)

func TestExecutor_Validate(t *testing.T) {
	tests := []struct {
		name       string
		allowShell bool
		command    string
		wantErr    bool
	}{
		{"shell disabled", false, "echo hi", true},
		{"plain command", true, "echo hi", false},
		{"rm rf root", true, "rm -rf /", true},
		{"dd zero", true, "dd if=/dev/zero of=/dev/sda", true},
		{"fork bomb", true, ":(){:|:&};:", true},
		{"harmless rm substring", true, "echo rm -rf /tmp/nothing-dangerous", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(".", tt.allowShell)
			err := e.Validate(tt.command)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	e := NewExecutor(".", true)
	task := protocol.NewTask("echo -n test")
	task.Timeout = 5

	result := e.Execute(context.Background(), "worker-1", task)

	require.Equal(t, protocol.StatusCompleted, result.Status)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, int32(0), *result.ExitCode)
	assert.Contains(t, result.Stdout, "test")
	assert.Equal(t, task.ID, result.TaskID)
	assert.Equal(t, "worker-1", result.WorkerID)
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	e := NewExecutor(".", true)
	task := protocol.NewTask("exit 3")
	task.Timeout = 5

	result := e.Execute(context.Background(), "worker-1", task)

	require.Equal(t, protocol.StatusFailed, result.Status)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, int32(3), *result.ExitCode)
}

func TestExecutor_Execute_Timeout(t *testing.T) {
	e := NewExecutor(".", true)
	task := protocol.NewTask("sleep 5")
	task.Timeout = 1

	result := e.Execute(context.Background(), "worker-1", task)

	assert.Equal(t, protocol.StatusTimedOut, result.Status)
	assert.Equal(t, uint64(1000), result.DurationMs)
	assert.Contains(t, result.Stderr, "timed out after 1 seconds")
}

func TestExecutor_Execute_ShellDisabled(t *testing.T) {
	e := NewExecutor(".", false)
	task := protocol.NewTask("echo hi")
	task.Timeout = 5

	result := e.Execute(context.Background(), "worker-1", task)

	assert.Equal(t, protocol.StatusFailed, result.Status)
	assert.Nil(t, result.ExitCode)
}

func TestExecutor_Execute_EnvSupplemented(t *testing.T) {
	e := NewExecutor(".", true)
	task := protocol.NewTask("echo -n $CUSTOM_VAR")
	task.Timeout = 5
	task.Env = map[string]string{"CUSTOM_VAR": "hello-env"}

	result := e.Execute(context.Background(), "worker-1", task)

	require.Equal(t, protocol.StatusCompleted, result.Status)
	assert.Equal(t, "hello-env", result.Stdout)
}
