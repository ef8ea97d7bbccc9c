package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupCorpus lays out a corpus workspace in a temp directory: the config
// file and one source file per docs entry.
func SetupCorpus(t *testing.T, configYAML string, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "source"), 0o755))
	for doc, text := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "source", doc+".txt"), []byte(text), 0o644))
	}
	return dir
}

// SetupAppTest creates an app instance over a corpus workspace, logging
// into the returned buffer. The built-in modules and their repo manifests
// are used.
func SetupAppTest(t *testing.T, corpusDir, logLevel string) (*App, *SafeBuffer) {
	t.Helper()
	logBuffer := &SafeBuffer{}
	a, err := New(logBuffer, &Config{
		ConfigPath:  filepath.Join(corpusDir, "config.yaml"),
		ModulesPath: filepath.Join("..", "..", "modules"),
		LogFormat:   "text",
		LogLevel:    logLevel,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("ANNOGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full log output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return a, logBuffer
}
