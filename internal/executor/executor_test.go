package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultShell); err != nil {
		t.Skip("bash not available")
	}
}

func TestScript(t *testing.T) {
	got := Script([]string{"ls -la", "echo 'it''s'"})
	assert.Equal(t, "set -e\n"+
		"echo '$ ls -la'\n"+
		"ls -la\n"+
		`echo '$ echo '\''it'\'\''s'\'`+"\n"+
		"echo 'it''s'\n", got)
}

func TestScriptEmpty(t *testing.T) {
	assert.Equal(t, "set -e\n", Script(nil))
}

func TestRunEchoesAndMergesOutput(t *testing.T) {
	requireBash(t)

	var out bytes.Buffer
	err := New(&out).Run(context.Background(), []string{
		"echo hello",
		"echo oops >&2",
		`printf '%s\n' "$HOME" > /dev/null`,
	})
	require.NoError(t, err)

	assert.Equal(t, "$ echo hello\nhello\n$ echo oops >&2\noops\n$ printf '%s\\n' \"$HOME\" > /dev/null\n", out.String())
}

func TestRunEchoesQuotedCommandVerbatim(t *testing.T) {
	requireBash(t)

	var out bytes.Buffer
	require.NoError(t, New(&out).Run(context.Background(), []string{"echo 'it''s' `true`"}))
	assert.Equal(t, "$ echo 'it''s' `true`\nits\n", out.String())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	requireBash(t)
	marker := filepath.Join(t.TempDir(), "ran")

	var out bytes.Buffer
	err := New(&out).Run(context.Background(), []string{
		"echo first",
		"exit 3",
		"touch " + marker,
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.NoFileExists(t, marker)
	assert.Contains(t, out.String(), "first")
}

func TestRunSharesShellState(t *testing.T) {
	requireBash(t)
	dir := t.TempDir()

	var out bytes.Buffer
	err := New(&out).Run(context.Background(), []string{
		"cd " + dir,
		"GREETING=hi",
		`echo "$GREETING" > greeting.txt`,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestRunEmptyStartsNoShell(t *testing.T) {
	var out bytes.Buffer
	err := New(&out).WithShell("/definitely/not/a/shell").Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestRunMissingShell(t *testing.T) {
	var out bytes.Buffer
	err := New(&out).WithShell("/definitely/not/a/shell").Run(context.Background(), []string{"true"})
	require.Error(t, err)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestRunCancelled(t *testing.T) {
	requireBash(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	err := New(&out).Run(ctx, []string{"sleep 10"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCancelledKillsChildren(t *testing.T) {
	requireBash(t)

	marker := filepath.Join(t.TempDir(), "marker")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	start := time.Now()
	// The subshell outlives bash unless the whole process group is killed.
	err := New(&out).Run(ctx, []string{"(sleep 1 && touch " + marker + ") & wait"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	time.Sleep(1500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background command survived cancellation")
}
