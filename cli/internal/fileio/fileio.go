// Package fileio is the session's file layer: snapshots read at session
// creation and a Store used by the transaction manager for apply/undo writes.
// The OS store writes atomically (temp file then rename) so an interrupted
// apply never leaves a half-written file.
package fileio

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Snapshot is one file's content as captured at session creation. It is
// never mutated in place; a continued session captures fresh snapshots.
type Snapshot struct {
	Path     string
	Content  string
	Language string
}

// Store reads and writes file content by path. Read returns fs.ErrNotExist
// (possibly wrapped) when the path does not exist.
type Store interface {
	Read(path string) (string, error)
	Write(path, content string) error
	Remove(path string) error
}

// OS is a Store over the real filesystem, rooted at Root. Paths are joined
// under Root; an empty Root uses paths as given.
type OS struct {
	Root string
}

func (s *OS) abs(path string) string {
	if s.Root == "" {
		return path
	}
	return filepath.Join(s.Root, path)
}

// Read returns the file content. Missing files return fs.ErrNotExist via os.ReadFile.
func (s *OS) Read(path string) (string, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write writes content atomically: temp file in the target directory, fsync,
// then rename. Creates parent directories as needed.
func (s *OS) Write(path, content string) error {
	target := s.abs(path)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Remove deletes the file. Used by undo when the apply created the file.
func (s *OS) Remove(path string) error {
	return os.Remove(s.abs(path))
}

// Mem is an in-memory Store for tests and dry runs. WriteErr, when set for a
// path, is returned by Write for that path so rollback behavior can be exercised.
type Mem struct {
	mu       sync.Mutex
	files    map[string]string
	WriteErr map[string]error
}

// NewMem returns a Mem store seeded with the given files (may be nil).
func NewMem(files map[string]string) *Mem {
	m := &Mem{files: make(map[string]string, len(files))}
	for p, c := range files {
		m.files[p] = c
	}
	return m
}

func (m *Mem) Read(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return "", fs.ErrNotExist
	}
	return content, nil
}

func (m *Mem) Write(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.WriteErr[path]; err != nil {
		return err
	}
	m.files[path] = content
	return nil
}

func (m *Mem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return fs.ErrNotExist
	}
	delete(m.files, path)
	return nil
}

// Paths returns the stored paths, sorted. For test assertions.
func (m *Mem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Load reads each path through the store into a Snapshot, tagging the
// language from the file extension. Missing files yield an empty-content
// snapshot so a session can target files the model is expected to create.
func Load(store Store, paths []string) ([]Snapshot, error) {
	snaps := make([]Snapshot, 0, len(paths))
	for _, p := range paths {
		content, err := store.Read(p)
		if err != nil {
			if isNotExist(err) {
				content = ""
			} else {
				return nil, err
			}
		}
		snaps = append(snaps, Snapshot{Path: p, Content: content, Language: LanguageTag(p)})
	}
	return snaps, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || err == fs.ErrNotExist
}

// languageByExt maps common extensions to the tag used in prompt fences.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".md":   "markdown",
	".json": "json",
	".toml": "toml",
	".yaml": "yaml",
	".yml":  "yaml",
	".sh":   "bash",
	".sql":  "sql",
	".html": "html",
	".css":  "css",
}

// LanguageTag returns the fence language tag for a path, or "" when unknown.
func LanguageTag(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}
