// Package sink provides output destinations for generated union files.
package sink

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/wowselim/goldfinch/internal/errors"
)

// OutputSink receives generated file content.
// Implementations must be safe for concurrent calls.
type OutputSink interface {
	// WriteFile writes content to path. The path is slash-separated and
	// relative; the sink decides where it ends up.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// Dependency names the source a generated file was derived from. File is the
// declaring source file when known; Package is always set.
type Dependency struct {
	File    string
	Package string
}

func (d Dependency) String() string {
	if d.File != "" {
		return d.File
	}
	return d.Package
}

// DependencyTracker is implemented by sinks that record which source each
// written file came from.
type DependencyTracker interface {
	AddDependency(path string, dep Dependency)
}

// FilesystemSink writes to a directory on the local filesystem.
type FilesystemSink struct {
	// Root is the base directory for all writes.
	Root string

	// Mode is the file permission mode (default: 0644).
	Mode os.FileMode

	// Overwrite controls behavior for existing files.
	// If false, returns an error when a file exists.
	Overwrite bool

	// SkipUnchanged leaves files whose content is already up to date
	// untouched, so their modification times stay stable.
	SkipUnchanged bool
}

// NewFilesystemSink creates a FilesystemSink writing under root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{
		Root:          root,
		Mode:          0644,
		Overwrite:     true,
		SkipUnchanged: true,
	}
}

// WriteFile writes content to path within the root directory, creating
// parent directories as needed. Writes go through a temp file and a rename,
// so a reader never sees a partially written file.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return errors.Wrapf(err, "invalid path %q", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if s.SkipUnchanged && s.Overwrite {
		if existing, err := os.ReadFile(fullPath); err == nil && bytes.Equal(existing, content) {
			return nil
		}
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create directories")
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0644
	}

	tempFile, err := os.CreateTemp(dir, ".goldfinch-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()

	// Leftover temp files match .goldfinch-*.tmp if removal fails.
	cleanup := func() { _ = os.Remove(tempPath) }

	if writeErr != nil {
		cleanup()
		return errors.Wrap(writeErr, "write temp file")
	}
	if closeErr != nil {
		cleanup()
		return errors.Wrap(closeErr, "close temp file")
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return errors.Wrap(err, "set file mode")
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}

	if s.Overwrite {
		if err := os.Rename(tempPath, fullPath); err != nil {
			cleanup()
			return errors.Wrap(err, "rename temp file")
		}
		return nil
	}

	// os.Link fails if the target exists, without a stat+rename race.
	if err := os.Link(tempPath, fullPath); err != nil {
		cleanup()
		if errors.Is(err, os.ErrExist) {
			return errors.Newf("file already exists: %q", path)
		}
		return errors.Wrap(err, "create file")
	}
	_ = os.Remove(tempPath)
	return nil
}

// resolve joins path onto Root and rejects results outside of it.
func (s *FilesystemSink) resolve(path string) (string, error) {
	fullPath := filepath.Join(s.Root, filepath.FromSlash(path))

	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return "", errors.Wrap(err, "resolve root directory")
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", errors.Wrap(err, "resolve path")
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) && absPath != absRoot {
		return "", errors.Newf("path escapes root directory: %q", path)
	}
	return fullPath, nil
}

// MemorySink stores generated files in memory. It backs dry runs, the check
// command, and tests. All operations are safe for concurrent use.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
	deps  map[string]Dependency
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		files: make(map[string][]byte),
		deps:  make(map[string]Dependency),
	}
}

// WriteFile stores a copy of content under path.
func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return errors.Wrapf(err, "invalid path %q", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = bytes.Clone(content)
	return nil
}

// AddDependency records the source of the file at path.
func (s *MemorySink) AddDependency(path string, dep Dependency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps[path] = dep
}

// Dependency returns the recorded source of path.
func (s *MemorySink) Dependency(path string) (Dependency, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dep, ok := s.deps[path]
	return dep, ok
}

// Files returns a copy of all written files.
func (s *MemorySink) Files() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(s.files))
	for path, content := range s.files {
		result[path] = bytes.Clone(content)
	}
	return result
}

// Paths returns the written paths in sorted order.
func (s *MemorySink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.files))
}

// Get returns the content of a single file, or nil if not found.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[path]
	if !ok {
		return nil
	}
	return bytes.Clone(content)
}

// Reset clears all stored files and dependencies.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string][]byte)
	s.deps = make(map[string]Dependency)
}

// Stale compares the files in s against the files under root and returns
// the paths that are missing on disk or differ from the stored content, in
// sorted order.
func (s *MemorySink) Stale(root string) ([]string, error) {
	var stale []string
	for _, path := range s.Paths() {
		onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
		switch {
		case errors.Is(err, os.ErrNotExist):
			stale = append(stale, path)
		case err != nil:
			return nil, errors.Wrapf(err, "read %s", path)
		case !bytes.Equal(onDisk, s.Get(path)):
			stale = append(stale, path)
		}
	}
	return stale, nil
}

// ValidatePath checks if a path is valid for output.
// Paths must be relative (no leading /), use / as separator,
// not contain .. components, and be clean (no ./, duplicate /).
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}

	if filepath.IsAbs(path) {
		return errors.New("absolute paths not allowed")
	}

	// Windows drive letters, even on Unix.
	if len(path) >= 2 && path[1] == ':' && ((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		return errors.New("absolute paths not allowed")
	}

	if strings.Contains(path, "..") {
		return errors.New("path traversal not allowed")
	}

	cleaned := filepath.Clean(filepath.ToSlash(path))
	if cleaned != filepath.ToSlash(path) {
		return errors.Newf("path is not clean (expected %q, got %q)", cleaned, path)
	}

	if strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return errors.New("path traversal not allowed")
	}

	return nil
}
