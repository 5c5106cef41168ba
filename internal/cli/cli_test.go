package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/playbook/internal/config"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig(backend string) *config.Config {
	cfg := &config.Config{}
	cfg.Remote.Fixture = filepath.Join("testdata", "workflows.yaml")
	cfg.Remote.Timeout = time.Second
	cfg.Store.Backend = backend
	cfg.Log.Level = "error"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// captureIO swaps the standard streams for the duration of the test.
func captureIO(t *testing.T, input string) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	oldIn, oldOut, oldErr := stdin, stdout, stderr
	stdin, stdout, stderr = strings.NewReader(input), &out, &bytes.Buffer{}
	t.Cleanup(func() { stdin, stdout, stderr = oldIn, oldOut, oldErr })
	return &out
}

func TestNewApp_Backends(t *testing.T) {
	captureIO(t, "")
	dir := t.TempDir()

	t.Run("file with encryption and masking", func(t *testing.T) {
		cfg := testConfig(config.BackendFile)
		cfg.Store.Path = filepath.Join(dir, "progress")
		cfg.Store.EncryptionKey = testKey
		cfg.Store.MaskPatterns = []string{`\d{3}-\d{4}`}
		app := newTestApp(t, cfg)

		_, err := app.Engine.Answer(context.Background(), "lost-laptop", "INC-1", domain.AnswerInput{Text: "No"})
		require.NoError(t, err)

		snap, err := app.Store.Load(context.Background(), "lost-laptop", "INC-1")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, snap.CompletedQuestionIDs)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig(config.BackendSQLite)
		cfg.Store.Path = filepath.Join(dir, "progress.db")
		app := newTestApp(t, cfg)

		_, err := app.Engine.Start(context.Background(), "lost-laptop", "INC-2")
		require.NoError(t, err)
	})

	t.Run("redis with lock", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(config.BackendRedis)
		cfg.Redis.Addr = mr.Addr()
		cfg.Redis.Prefix = "test:"
		cfg.Redis.Lock = true
		app := newTestApp(t, cfg)

		_, err := app.Engine.Answer(context.Background(), "lost-laptop", "INC-3", domain.AnswerInput{Text: "Yes"})
		require.NoError(t, err)
		keys, err := app.Store.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"lost-laptop:INC-3"}, keys)
	})

	t.Run("metrics toggle", func(t *testing.T) {
		cfg := testConfig(config.BackendMemory)
		assert.Nil(t, newTestApp(t, cfg).Gatherer())

		cfg.Metrics.Enabled = true
		assert.NotNil(t, newTestApp(t, cfg).Gatherer())
	})

	t.Run("invalid settings", func(t *testing.T) {
		cfg := testConfig(config.BackendMemory)
		cfg.Store.EncryptionKey = "short"
		_, err := NewApp(cfg)
		assert.ErrorContains(t, err, "store.encryption_key")

		cfg = testConfig(config.BackendMemory)
		cfg.Store.MaskPatterns = []string{"("}
		_, err = NewApp(cfg)
		assert.ErrorContains(t, err, "store.mask_patterns")

		cfg = testConfig(config.BackendMemory)
		cfg.Remote.Fixture = filepath.Join(dir, "missing.yaml")
		_, err = NewApp(cfg)
		assert.Error(t, err)

		cfg = testConfig(config.BackendMemory)
		cfg.Log.Level = "loud"
		_, err = NewApp(cfg)
		assert.Error(t, err)
	})
}

func TestRunSession_CompleteAndStatus(t *testing.T) {
	out := captureIO(t, "No\n\nbob\n")
	app := newTestApp(t, testConfig(config.BackendMemory))
	ctx := context.Background()

	require.NoError(t, RunSession(ctx, app, RunOptions{Workflow: "lost-laptop", Incident: "INC-9", Plain: true}))
	assert.Contains(t, out.String(), "Notify the privacy officer")
	assert.Contains(t, out.String(), `Workflow "lost-laptop" complete for incident INC-9 (3 answered, 0 skipped).`)

	out.Reset()
	done, err := PrintStatus(ctx, app, "lost-laptop", "INC-9")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, out.String(), "lost-laptop:INC-9: complete")
}

func TestRunSession_PauseAndFresh(t *testing.T) {
	captureIO(t, "Yes\nquit\n")
	app := newTestApp(t, testConfig(config.BackendMemory))
	ctx := context.Background()

	require.NoError(t, RunSession(ctx, app, RunOptions{Workflow: "lost-laptop", Incident: "INC-4", Plain: true}))
	_, err := app.Store.Load(ctx, "lost-laptop", "INC-4")
	require.NoError(t, err)

	captureIO(t, "quit\n")
	require.NoError(t, RunSession(ctx, app, RunOptions{Workflow: "lost-laptop", Incident: "INC-4", Plain: true, Fresh: true}))
	_, err = app.Store.Load(ctx, "lost-laptop", "INC-4")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestRunSession_JSON(t *testing.T) {
	out := captureIO(t, `{"answer":"Yes"}`+"\n"+`{"users":["carol"]}`+"\n")
	app := newTestApp(t, testConfig(config.BackendMemory))

	require.NoError(t, RunSession(context.Background(), app, RunOptions{Workflow: "lost-laptop", Incident: "INC-5", JSON: true}))
	assert.Contains(t, out.String(), `"type":"question"`)
	assert.Contains(t, out.String(), "complete for incident INC-5")
}

func TestPrintStatus_RemoteHistory(t *testing.T) {
	captureIO(t, "")
	app := newTestApp(t, testConfig(config.BackendMemory))

	done, err := PrintStatus(context.Background(), app, "lost-laptop", "INC-DONE")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = PrintStatus(context.Background(), app, "lost-laptop", "INC-NEW")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = PrintStatus(context.Background(), app, "lost-laptop", "")
	assert.EqualError(t, err, "Both workflow ID and incident number are required")
}

func TestSessionCommands(t *testing.T) {
	out := captureIO(t, "")
	app := newTestApp(t, testConfig(config.BackendMemory))
	ctx := context.Background()

	require.NoError(t, ListSessions(ctx, app))
	assert.Contains(t, out.String(), "No saved runs found.")

	_, err := app.Engine.Answer(ctx, "lost-laptop", "INC-6", domain.AnswerInput{Text: "Yes"})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, ListSessions(ctx, app))
	assert.Contains(t, out.String(), "- lost-laptop:INC-6")

	out.Reset()
	require.NoError(t, InspectSession(ctx, app, "lost-laptop", "INC-6"))
	assert.Contains(t, out.String(), `"last_filled_question_id": 1`)

	out.Reset()
	err = RemoveSessions(ctx, app, []string{"lost-laptop:INC-6", "bogus"})
	assert.ErrorContains(t, err, `remove "bogus"`)
	assert.Contains(t, out.String(), "Removed run 'lost-laptop:INC-6'")

	assert.Error(t, InspectSession(ctx, app, "lost-laptop", "INC-6"))
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key      string
		workflow string
		incident string
		wantErr  bool
	}{
		{"triage:INC-1", "triage", "INC-1", false},
		{"triage:2024:17", "triage", "2024:17", false},
		{"triage%3Aphish:INC-1", "triage:phish", "INC-1", false},
		{"triage", "", "", true},
		{":INC-1", "", "", true},
		{"triage:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			wf, inc, err := SplitKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.workflow, wf)
			assert.Equal(t, tt.incident, inc)
		})
	}
}

func TestPrintGraph(t *testing.T) {
	out := captureIO(t, "")
	app := newTestApp(t, testConfig(config.BackendMemory))
	ctx := context.Background()

	require.NoError(t, PrintGraph(ctx, app, "lost-laptop", GraphOptions{Edges: true}))
	assert.Contains(t, out.String(), "1 [MultipleChoice] Was the disk encrypted?")
	assert.Contains(t, out.String(), `-> 3 (option) "Yes"`)

	out.Reset()
	require.NoError(t, PrintGraph(ctx, app, "lost-laptop", GraphOptions{Incident: "INC-DONE"}))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.Contains(t, out.String(), "class q1 completed;")

	assert.Error(t, PrintGraph(ctx, app, "unknown", GraphOptions{}))
}

func TestValidateWorkflow(t *testing.T) {
	out := captureIO(t, "")
	app := newTestApp(t, testConfig(config.BackendMemory))

	require.NoError(t, ValidateWorkflow(context.Background(), app, "lost-laptop"))
	assert.Contains(t, out.String(), `Workflow "lost-laptop" is valid (3 questions).`)

	assert.Error(t, ValidateWorkflow(context.Background(), app, "unknown"))
}
