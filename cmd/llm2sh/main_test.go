package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randombk/llm2sh/internal/history"
	"github.com/randombk/llm2sh/internal/ui"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// setup isolates HOME and captures ui output.
func setup(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY", "CEREBRAS_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(env, "")
	}

	var out bytes.Buffer
	prevOut, prevErr := ui.Out, ui.ErrOut
	ui.Out, ui.ErrOut = &out, &out
	t.Cleanup(func() { ui.Out, ui.ErrOut = prevOut, prevErr })
	return &out, home
}

func writeConfig(t *testing.T, dir string, values map[string]any) string {
	t.Helper()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	path := filepath.Join(dir, "llm2sh.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// newLocalServer serves an OpenAI-compatible chat completion that replies
// with content and records the request bodies it received.
func newLocalServer(t *testing.T, content string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"local",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`, content)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(ui.Out)
	cmd.SetErr(ui.ErrOut)
	return cmd.ExecuteContext(context.Background())
}

func TestFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--force", "-t", "0", "-m", "groq/llama3-8b-8192"}))

	assert.True(t, cmd.Flags().Changed("temperature"))
	yolo, err := cmd.Flags().GetBool("yolo")
	require.NoError(t, err)
	assert.True(t, yolo)
	temp, err := cmd.Flags().GetFloat64("temperature")
	require.NoError(t, err)
	assert.Equal(t, 0.0, temp)

	cmd = newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-d", "find", ".", "-name", "x"}))
	assert.Equal(t, []string{"find", ".", "-name", "x"}, cmd.Flags().Args())
	assert.False(t, cmd.Flags().Changed("temperature"))
}

func TestRefineRequest(t *testing.T) {
	got := refineRequest("list files", []string{"ls", "ls -a"}, "only directories")
	assert.Equal(t, "list files\n\nYou previously suggested:\nls\nls -a\n\nChange it as follows: only directories", got)
}

func TestListModels(t *testing.T) {
	out, home := setup(t)
	cfgPath := writeConfig(t, home, map[string]any{"openai_api_key": "sk-test"})

	require.NoError(t, execute(t, "-c", cfgPath, "--list-models"))

	assert.Contains(t, out.String(), "Models can be configured via "+cfgPath)
	assert.Regexp(t, `openai/gpt-4o\s+OK \| Ready`, out.String())
	assert.Regexp(t, `anthropic/claude-3-opus-20240229\s+NOT AVAILABLE`, out.String())
}

func TestUnavailableModel(t *testing.T) {
	out, home := setup(t)
	cfgPath := writeConfig(t, home, map[string]any{"disable_history": true})

	err := execute(t, "-c", cfgPath, "-m", "anthropic/claude-3-haiku-20240307", "list", "files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
	assert.Contains(t, out.String(), "--list-models")
}

func TestDryRunRecordsHistory(t *testing.T) {
	out, home := setup(t)
	srv, bodies := newLocalServer(t, "Sure, here you go:\n```bash\nls -la\necho done\n```\n")
	cfgPath := writeConfig(t, home, map[string]any{"local_uri": srv.URL, "default_model": "local"})

	require.NoError(t, execute(t, "-c", cfgPath, "-d", "-t", "0", "list", "everything"))

	assert.Contains(t, out.String(), "(Dry Run) The LLM suggested these commands:\n  $ ls -la\n  $ echo done\n")
	require.Len(t, *bodies, 1)
	assert.Equal(t, 0.0, (*bodies)[0]["temperature"])
	assert.Equal(t, "local", (*bodies)[0]["model"])

	store, err := history.Open(filepath.Join(home, history.HistoryFileName))
	require.NoError(t, err)
	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, entries, 1)
	assert.Equal(t, "list everything", entries[0].Request)
	assert.Equal(t, "local/local", entries[0].Model)
	assert.Equal(t, history.OutcomeDryRun, entries[0].Outcome)
	assert.Equal(t, []string{"ls -la", "echo done"}, entries[0].Commands)

	out.Reset()
	require.NoError(t, execute(t, "-c", cfgPath, "--history", "5"))
	assert.Contains(t, out.String(), "list everything")
	assert.Contains(t, out.String(), "  $ echo done\n")
}

func TestNothingToRun(t *testing.T) {
	out, home := setup(t)
	srv, _ := newLocalServer(t, "Here is nothing useful\n```\n```\n")
	cfgPath := writeConfig(t, home, map[string]any{"local_uri": srv.URL, "disable_history": true})

	require.NoError(t, execute(t, "-c", cfgPath, "-m", "local", "-f", "do", "nothing"))
	assert.Contains(t, out.String(), "nothing to run")
	assert.NotContains(t, out.String(), "You are about to run")

	_, err := os.Stat(filepath.Join(home, history.HistoryFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestProviderErrorIsReported(t *testing.T) {
	_, home := setup(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	cfgPath := writeConfig(t, home, map[string]any{"local_uri": srv.URL, "disable_history": true})

	err := execute(t, "-c", cfgPath, "-m", "local", "list", "files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication rejected")
}

func TestRecorderWithoutStore(t *testing.T) {
	rec := &recorder{request: "r", model: "m"}
	rec.record(context.Background(), []string{"ls"}, history.OutcomeExecuted, nil)
	rec.close()
}

func TestHistoryFollowsConfigDirAndProgressOnStderr(t *testing.T) {
	_, home := setup(t)
	var stdout, stderr bytes.Buffer
	ui.Out, ui.ErrOut = &stdout, &stderr

	srv, _ := newLocalServer(t, "df -h")
	cfgDir := filepath.Join(t.TempDir(), "elsewhere")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	cfgPath := writeConfig(t, cfgDir, map[string]any{"local_uri": srv.URL, "default_model": "local"})

	require.NoError(t, execute(t, "-c", cfgPath, "-d", "free", "space"))

	assert.Contains(t, stderr.String(), "Thinking...")
	assert.NotContains(t, stdout.String(), "Thinking...")
	assert.Contains(t, stdout.String(), "  $ df -h\n")

	_, err := os.Stat(filepath.Join(cfgDir, history.HistoryFileName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, ".config", "llm2sh", history.HistoryFileName))
	assert.True(t, os.IsNotExist(err))
}
