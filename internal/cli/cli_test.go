package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusConfig = `
metadata:
  id: clidemo
  language: swe
import:
  document_element: text
export:
  xml:
    annotations:
      - "<token>:pos.tag"
`

func setupCorpus(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "source"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source", "doc1.txt"), []byte("Hello there."), 0o644))
	return dir
}

// execute runs the CLI against a corpus dir with the repo's module
// manifests, returning output and exit code.
func execute(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()
	var buf bytes.Buffer
	full := append([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--modules-path", filepath.Join("..", "..", "modules"),
		"--log-level", "error",
	}, args...)
	err := Execute(&buf, full)
	if err == nil {
		return buf.String(), ExitOK
	}
	coded, ok := err.(*CodedError)
	require.True(t, ok, "expected *CodedError, got %T: %v", err, err)
	return buf.String(), coded.Code
}

func TestRunCommand(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	_, code := execute(t, dir, "run")
	assert.Equal(t, ExitOK, code)
	assert.FileExists(t, filepath.Join(dir, "export", "xml", "doc1.xml"))
}

func TestRunDryRun(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	out, code := execute(t, dir, "run", "--dry-run")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "plan: ")
	assert.NoFileExists(t, filepath.Join(dir, "export", "xml", "doc1.xml"))
}

func TestConfigErrorExitCode(t *testing.T) {
	dir := t.TempDir() // no config file at all
	_, code := execute(t, dir, "files")
	assert.Equal(t, ExitConfigError, code)
}

func TestResolveErrorExitCode(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	_, code := execute(t, dir, "run", "missing.attr")
	assert.Equal(t, ExitResolveError, code)
}

func TestPartialFailureExitCode(t *testing.T) {
	cfg := corpusConfig + `
custom_annotations:
  - rule: "hunpos:pos"
    output: hp.tag
`
	dir := setupCorpus(t, cfg)
	_, code := execute(t, dir, "run", "hp.tag")
	assert.Equal(t, ExitPartialFailure, code)
}

func TestConfigCommand(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	out, code := execute(t, dir, "config", "metadata.id")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "clidemo")
}

func TestFilesCommand(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	out, code := execute(t, dir, "files")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "doc1\n")
}

func TestCleanCommand(t *testing.T) {
	dir := setupCorpus(t, corpusConfig)
	_, code := execute(t, dir, "run")
	require.Equal(t, ExitOK, code)
	require.DirExists(t, filepath.Join(dir, "work"))

	_, code = execute(t, dir, "clean", "--exports")
	assert.Equal(t, ExitOK, code)
	assert.NoDirExists(t, filepath.Join(dir, "work"))
	assert.NoDirExists(t, filepath.Join(dir, "export"))
}
