// Package workspace decodes the Angular CLI workspace file.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/tree"
)

// File is the workspace configuration path inside the tree.
const File = "/angular.json"

var ErrMalformedConfig = errors.New("malformed config")

// Workspace is the subset of angular.json rigger reads.
type Workspace struct {
	DefaultProject string             `json:"defaultProject"`
	NewProjectRoot string             `json:"newProjectRoot"`
	Projects       map[string]Project `json:"projects"`
}

// Project is one entry of the "projects" map.
type Project struct {
	Root        string                     `json:"root"`
	SourceRoot  string                     `json:"sourceRoot"`
	ProjectType string                     `json:"projectType"`
	Architect   map[string]Target          `json:"architect"`
	Schematics  map[string]json.RawMessage `json:"schematics"`
}

// Target is an architect target such as "build" or "test".
type Target struct {
	Builder string         `json:"builder"`
	Options map[string]any `json:"options,omitempty"`
}

// Load decodes angular.json from t. It returns nil, nil when the file is
// absent and ErrMalformedConfig when it does not parse or does not name a
// default project present in "projects".
func Load(t *tree.Tree) (*Workspace, error) {
	if !t.Exists(File) {
		return nil, nil
	}
	data, err := t.Read(File)
	if err != nil {
		return nil, err
	}
	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedConfig, File, err)
	}
	if ws.DefaultProject == "" {
		return nil, fmt.Errorf("%w: %s: missing defaultProject", ErrMalformedConfig, File)
	}
	if _, ok := ws.Projects[ws.DefaultProject]; !ok {
		return nil, fmt.Errorf("%w: %s: default project %q not found", ErrMalformedConfig, File, ws.DefaultProject)
	}
	return &ws, nil
}

// Default returns the default project.
func (w *Workspace) Default() Project {
	return w.Projects[w.DefaultProject]
}

// SourceRoot returns the default project's source directory relative to
// the workspace root. A nil workspace means a bare project rooted at "src".
func (w *Workspace) SourceRoot() string {
	if w == nil {
		return "src"
	}
	p := w.Default()
	switch {
	case p.SourceRoot != "":
		return p.SourceRoot
	case p.Root != "":
		return path.Join(p.Root, "src")
	default:
		return "src"
	}
}

// E2EProject returns the name of the default project's e2e companion.
func (w *Workspace) E2EProject() string {
	return w.DefaultProject + "-e2e"
}

// ProjectRoot returns the directory new libraries are generated in.
func (w *Workspace) ProjectRoot() string {
	if w == nil || w.NewProjectRoot == "" {
		return "projects"
	}
	return w.NewProjectRoot
}

// Libraries returns the names of library projects, sorted.
func (w *Workspace) Libraries() []string {
	if w == nil {
		return nil
	}
	var libs []string
	for name, p := range w.Projects {
		if p.ProjectType == "library" {
			libs = append(libs, name)
		}
	}
	sort.Strings(libs)
	return libs
}

// TestRoots returns the directories jest searches for specs: the default
// source root, plus the library root once a library exists.
func (w *Workspace) TestRoots() []string {
	roots := []string{w.SourceRoot()}
	if len(w.Libraries()) > 0 {
		roots = append(roots, w.ProjectRoot())
	}
	return roots
}

// ProjectKeyPath returns the key path of a value below projects[name].
func ProjectKeyPath(name string, keys ...string) string {
	return jsonpatch.KeyPath(append([]string{"projects", name}, keys...)...)
}
