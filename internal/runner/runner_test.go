package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExec_CapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := Exec{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)

	res, err := Exec{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExec_WorkingDirAndEnv(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	res, err := Exec{}.Run(context.Background(), Command{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", "pwd; echo $RUNNER_TEST_VALUE"},
		Env:  []string{"RUNNER_TEST_VALUE=hello"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "hello")
}

func TestExec_Timeout(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Exec{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExec_MissingBinary(t *testing.T) {
	_, err := Exec{}.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run")
}

func TestResult_Combined(t *testing.T) {
	assert.Equal(t, "a\nb", (&Result{Stdout: "a", Stderr: "b"}).Combined())
	assert.Equal(t, "b", (&Result{Stderr: "b"}).Combined())
	assert.Equal(t, "a", (&Result{Stdout: "a"}).Combined())
}

func TestFunc_AdaptsFunction(t *testing.T) {
	var seen Command
	r := Func(func(_ context.Context, cmd Command) (*Result, error) {
		seen = cmd
		return &Result{ExitCode: 7}, nil
	})

	res, err := r.Run(context.Background(), Command{Name: "git", Args: []string{"status"}})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "git status", seen.String())
}
