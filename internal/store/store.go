// Package store implements the filesystem-backed annotation store: the
// per-corpus cache of produced artifacts, keyed by document and annotation
// name. Writes are atomic (temp file + rename), so a reader can never
// observe a half-written artifact, and an abandoned write never becomes
// visible.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/vk/annogrid/internal/anno"
)

// Store is the on-disk key space (document, annotation name) -> artifact.
// Corpus-scope artifacts use an empty document and live at the store root,
// next to the per-document directories.
type Store struct {
	root string
	lock *flock.Flock
}

// Open prepares the store directory and returns a handle. The directory is
// created if missing.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, tmpDir), 0o755); err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}
	return &Store{
		root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

// tmpDir holds in-flight writes before their rename into place.
const tmpDir = ".tmp"

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Acquire takes the advisory cross-process lock guarding this store. It
// fails immediately when another pipeline invocation holds it.
func (s *Store) Acquire() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return &IOError{Op: "lock", Err: err}
	}
	if !ok {
		return &IOError{Op: "lock", Msg: "another pipeline run holds the store lock"}
	}
	return nil
}

// Release drops the advisory lock.
func (s *Store) Release() error {
	return s.lock.Unlock()
}

// artifactPath maps (doc, annotation) to the artifact file. The layout
// mirrors the annotation name: <doc>/<elem>/<attr>, with the doc level
// omitted for corpus-scope artifacts.
func (s *Store) artifactPath(doc, name string) string {
	rel := anno.StorePath(name)
	if doc != "" {
		rel = filepath.Join(doc, rel)
	}
	return filepath.Join(s.root, rel)
}

func metaPath(artifact string) string {
	return artifact + ".meta.json"
}

// Write persists one artifact with its metadata. The meta sidecar is
// committed before the artifact itself, so a visible artifact always has
// readable metadata.
func (s *Store) Write(doc, name string, meta Meta, payload []byte) error {
	artifact := s.artifactPath(doc, name)
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return &IOError{Doc: doc, Annotation: name, Op: "write", Err: err}
	}

	meta.Produced = time.Now().UTC()
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return &IOError{Doc: doc, Annotation: name, Op: "write", Err: err}
	}
	if err := s.commit(metaPath(artifact), metaRaw); err != nil {
		return &IOError{Doc: doc, Annotation: name, Op: "write", Err: err}
	}
	if err := s.commit(artifact, payload); err != nil {
		return &IOError{Doc: doc, Annotation: name, Op: "write", Err: err}
	}
	return nil
}

// commit writes data to a unique temp file and renames it into place.
func (s *Store) commit(path string, data []byte) error {
	tmp := filepath.Join(s.root, tmpDir, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WriteLines persists an artifact holding one value per line, the standard
// encoding for per-token and per-span annotations.
func (s *Store) WriteLines(doc, name string, meta Meta, lines []string) error {
	payload := []byte{}
	if len(lines) > 0 {
		payload = []byte(strings.Join(lines, "\n") + "\n")
	}
	return s.Write(doc, name, meta, payload)
}

// Read returns an artifact's raw payload.
func (s *Store) Read(doc, name string) ([]byte, error) {
	raw, err := os.ReadFile(s.artifactPath(doc, name))
	if err != nil {
		return nil, &IOError{Doc: doc, Annotation: name, Op: "read", Err: err}
	}
	return raw, nil
}

// ReadLines returns a line-per-value artifact as a slice.
func (s *Store) ReadLines(doc, name string) ([]string, error) {
	raw, err := s.Read(doc, name)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(raw), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// ReadMeta returns an artifact's metadata sidecar.
func (s *Store) ReadMeta(doc, name string) (*Meta, error) {
	raw, err := os.ReadFile(metaPath(s.artifactPath(doc, name)))
	if err != nil {
		return nil, &IOError{Doc: doc, Annotation: name, Op: "read-meta", Err: err}
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &IOError{Doc: doc, Annotation: name, Op: "read-meta", Err: err}
	}
	return &meta, nil
}

// Exists reports whether an artifact is visible in the store.
func (s *Store) Exists(doc, name string) bool {
	_, err := os.Stat(s.artifactPath(doc, name))
	return err == nil
}

// ModTime returns an artifact's modification time. The boolean is false
// when the artifact does not exist.
func (s *Store) ModTime(doc, name string) (time.Time, bool) {
	info, err := os.Stat(s.artifactPath(doc, name))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// RemoveAll deletes the entire store directory. Artifacts are regenerable
// from sources plus configuration.
func (s *Store) RemoveAll() error {
	if err := os.RemoveAll(s.root); err != nil {
		return &IOError{Op: "clean", Err: err}
	}
	return nil
}
