package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/internal/testutils"
	"github.com/aretw0/umlsync/pkg/adapters/loam"
	"github.com/aretw0/umlsync/pkg/config"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "umlsync.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"warn\"\n[dispatch]\nworker = \"process\"\n"), 0644))

	cfg, err := LoadConfig(RunOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, config.WorkerProcess, cfg.Dispatch.Worker)

	cfg, err = LoadConfig(RunOptions{ConfigPath: path, Worker: config.WorkerNone, Debug: true, SafeMode: true})
	require.NoError(t, err)
	assert.Equal(t, config.WorkerNone, cfg.Dispatch.Worker)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Diagnostic)
	assert.True(t, cfg.SafeMode)
}

func TestLoadConfig_SessionEnablesFileStore(t *testing.T) {
	cfg, err := LoadConfig(RunOptions{ConfigPath: writeConfig(t, t.TempDir()), SessionID: "s"})
	require.NoError(t, err)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, config.StoreFile, cfg.Backup.Store)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(RunOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, findConfig(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "umlsync.json"), []byte("{}"), 0644))
	assert.Equal(t, filepath.Join(dir, "umlsync.json"), findConfig(dir))
}

// writeConfig points the file store at dir and disables the worker goroutine.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "umlsync.yaml")
	body := "dispatch:\n  worker: none\nbackup:\n  dir: " + filepath.Join(dir, "sessions") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunSession_PersistsNamedSession(t *testing.T) {
	dir := t.TempDir()
	opts := RunOptions{ConfigPath: writeConfig(t, dir), SessionID: "demo", Headless: true}

	var out bytes.Buffer
	script := testutils.Sample + "\n:apply\n:quit\n"
	require.NoError(t, RunSession(opts, strings.NewReader(script), &out))
	assert.Contains(t, out.String(), "actors: User, AuthService, UserDB")
	assert.FileExists(t, filepath.Join(dir, "sessions", "demo.json"))

	out.Reset()
	require.NoError(t, RunSession(opts, strings.NewReader(":stats\n"), &out))
	assert.Contains(t, out.String(), "actors: 3")

	opts.Fresh = true
	out.Reset()
	require.NoError(t, RunSession(opts, strings.NewReader(":stats\n"), &out))
	assert.Contains(t, out.String(), "actors: 0")
}

func TestRunSession_OpensFromLibrary(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "library")
	lib, err := loam.Open(libDir)
	require.NoError(t, err)
	require.NoError(t, lib.Save(context.Background(), ports.Diagram{ID: "login", Title: "Login", Code: testutils.Sample}))

	opts := RunOptions{ConfigPath: writeConfig(t, dir), Headless: true, LibraryDir: libDir}
	var out bytes.Buffer
	require.NoError(t, RunSession(opts, strings.NewReader(":open login\n:show\n"), &out))
	assert.Contains(t, out.String(), "actors: User, AuthService, UserDB")
	assert.Contains(t, out.String(), "title Login")
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.puml")
	require.NoError(t, os.WriteFile(path, []byte("@startuml\nactor A\n@enduml\n"), 0644))

	opts := RunOptions{ConfigPath: writeConfig(t, dir)}
	ed, _, logger, err := NewEditor(opts)
	require.NoError(t, err)
	defer ed.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	var updates []*runtime.UpdateResult
	got := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, ed, path, 20*time.Millisecond, logger, func(res *runtime.UpdateResult, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			updates = append(updates, res)
			mu.Unlock()
			got <- struct{}{}
		})
	}()

	select {
	case <-got:
	case <-ctx.Done():
		t.Fatal("initial parse not reported")
	}
	require.NoError(t, os.WriteFile(path, []byte(testutils.Sample), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-got:
		case <-deadline:
			t.Fatal("change not reported")
		}
		if len(ed.State().Actors) == 3 {
			break
		}
	}
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A"}, updates[0].State.Actors)
	assert.Equal(t, "Login", ed.State().Title)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(nil))
	assert.Error(t, handleExecutionError(assert.AnError))
}
