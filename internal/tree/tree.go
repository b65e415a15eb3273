// Package tree provides the virtual file tree that rules mutate.
// Content lives in an in-memory billy filesystem; nothing reaches disk
// until Commit is called with a destination filesystem.
package tree

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

var (
	ErrPathNotFound      = errors.New("path not found")
	ErrPathAlreadyExists = errors.New("path already exists")
)

// DefaultIgnore lists the directories Load never descends into.
var DefaultIgnore = []string{"**/node_modules", "**/.git", "**/dist"}

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// State is the pending change recorded for a path.
type State int

const (
	Created State = iota + 1
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATE"
	case Modified:
		return "UPDATE"
	case Deleted:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Change is one pending entry of the change log.
type Change struct {
	Path  string
	State State
	Size  int
}

// Tree is a mutable snapshot of a file hierarchy.
// It is not safe for concurrent use; rules mutate it one after another.
type Tree struct {
	fs     billy.Filesystem
	live   map[string]struct{} // readable paths
	base   map[string]struct{} // paths present on the commit target
	states map[string]State
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		fs:     memfs.New(),
		live:   make(map[string]struct{}),
		base:   make(map[string]struct{}),
		states: make(map[string]State),
	}
}

// Load seeds a tree with every regular file of src. Paths matching an
// ignore pattern (doublestar syntax, relative to the root) are skipped;
// with no patterns DefaultIgnore applies.
func Load(src billy.Filesystem, ignore ...string) (*Tree, error) {
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}
	t := New()
	err := util.Walk(src, "", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(p)
		if rel == "" || rel == "." {
			return nil
		}
		if ignored(ignore, rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := util.ReadFile(src, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		name := Normalize(rel)
		if err := util.WriteFile(t.fs, name, data, 0o644); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		t.live[name] = struct{}{}
		t.base[name] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	return t, nil
}

func ignored(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Normalize maps any relative or rooted path onto the tree's rooted,
// slash-separated form: "./src//app.ts" becomes "/src/app.ts".
func Normalize(p string) string {
	return path.Clean("/" + filepath.ToSlash(p))
}

// Exists reports whether p is a readable file. It never fails.
func (t *Tree) Exists(p string) bool {
	_, ok := t.live[Normalize(p)]
	return ok
}

// Read returns the content of p.
func (t *Tree) Read(p string) ([]byte, error) {
	name := Normalize(p)
	if _, ok := t.live[name]; !ok {
		return nil, &PathError{Op: "read", Path: name, Err: ErrPathNotFound}
	}
	data, err := util.ReadFile(t.fs, name)
	if err != nil {
		return nil, &PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// Create adds a new file. It fails if p is already tracked.
func (t *Tree) Create(p string, content []byte) error {
	name := Normalize(p)
	if _, ok := t.live[name]; ok {
		return &PathError{Op: "create", Path: name, Err: ErrPathAlreadyExists}
	}
	if err := util.WriteFile(t.fs, name, content, 0o644); err != nil {
		return &PathError{Op: "create", Path: name, Err: err}
	}
	t.live[name] = struct{}{}
	if _, ok := t.base[name]; ok {
		t.states[name] = Modified
	} else {
		t.states[name] = Created
	}
	return nil
}

// Overwrite replaces the content of a tracked file. Writing identical
// content records no change.
func (t *Tree) Overwrite(p string, content []byte) error {
	name := Normalize(p)
	if _, ok := t.live[name]; !ok {
		return &PathError{Op: "overwrite", Path: name, Err: ErrPathNotFound}
	}
	current, err := util.ReadFile(t.fs, name)
	if err != nil {
		return &PathError{Op: "overwrite", Path: name, Err: err}
	}
	if bytes.Equal(current, content) {
		return nil
	}
	if err := util.WriteFile(t.fs, name, content, 0o644); err != nil {
		return &PathError{Op: "overwrite", Path: name, Err: err}
	}
	if t.states[name] != Created {
		t.states[name] = Modified
	}
	return nil
}

// Write creates p or overwrites it when it already exists.
func (t *Tree) Write(p string, content []byte) error {
	if t.Exists(p) {
		return t.Overwrite(p, content)
	}
	return t.Create(p, content)
}

// Delete removes a tracked file from all future reads.
func (t *Tree) Delete(p string) error {
	name := Normalize(p)
	if _, ok := t.live[name]; !ok {
		return &PathError{Op: "delete", Path: name, Err: ErrPathNotFound}
	}
	if err := t.fs.Remove(name); err != nil {
		return &PathError{Op: "delete", Path: name, Err: err}
	}
	delete(t.live, name)
	if _, ok := t.base[name]; ok {
		t.states[name] = Deleted
	} else {
		delete(t.states, name)
	}
	return nil
}

// Rename moves a tracked file to a new, untracked path.
func (t *Tree) Rename(from, to string) error {
	src, dst := Normalize(from), Normalize(to)
	if _, ok := t.live[src]; !ok {
		return &PathError{Op: "rename", Path: src, Err: ErrPathNotFound}
	}
	if _, ok := t.live[dst]; ok {
		return &PathError{Op: "rename", Path: dst, Err: ErrPathAlreadyExists}
	}
	data, err := t.Read(src)
	if err != nil {
		return err
	}
	if err := t.Create(dst, data); err != nil {
		return err
	}
	return t.Delete(src)
}

// Files returns every readable path, sorted.
func (t *Tree) Files() []string {
	files := make([]string, 0, len(t.live))
	for name := range t.live {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// Glob returns the readable paths matching a doublestar pattern.
// Relative patterns are anchored at the tree root.
func (t *Tree) Glob(pattern string) ([]string, error) {
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var matches []string
	for _, name := range t.Files() {
		if ok, _ := doublestar.Match(pattern, name); ok {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

// Changes returns the pending change log, sorted by path.
func (t *Tree) Changes() []Change {
	changes := make([]Change, 0, len(t.states))
	for name, state := range t.states {
		c := Change{Path: name, State: state}
		if state != Deleted {
			if info, err := t.fs.Stat(name); err == nil {
				c.Size = int(info.Size())
			}
		}
		changes = append(changes, c)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// Commit applies the change log to dst: created and modified files are
// written, deleted files are removed along with the directories they
// leave empty. The log is cleared afterwards and dst becomes the new base.
func (t *Tree) Commit(dst billy.Filesystem) ([]Change, error) {
	changes := t.Changes()
	var emptied []string
	for _, c := range changes {
		rel := strings.TrimPrefix(c.Path, "/")
		switch c.State {
		case Created, Modified:
			data, err := util.ReadFile(t.fs, c.Path)
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", c.Path, err)
			}
			if err := util.WriteFile(dst, rel, data, 0o644); err != nil {
				return nil, fmt.Errorf("commit %s: %w", c.Path, err)
			}
		case Deleted:
			if err := dst.Remove(rel); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("commit %s: %w", c.Path, err)
			}
			emptied = append(emptied, path.Dir(rel))
		}
	}
	for _, dir := range emptied {
		if err := pruneEmpty(dst, dir); err != nil {
			return nil, fmt.Errorf("commit %s: %w", dir, err)
		}
	}
	t.base = make(map[string]struct{}, len(t.live))
	for name := range t.live {
		t.base[name] = struct{}{}
	}
	t.states = make(map[string]State)
	return changes, nil
}

// pruneEmpty removes dir and its parents from fs while they are empty.
func pruneEmpty(fs billy.Filesystem, dir string) error {
	for ; dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		entries, err := fs.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return nil
		}
		if err := fs.Remove(dir); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
