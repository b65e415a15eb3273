package features

import (
	"path"
	"strings"

	"github.com/agentic-research/rigger/internal/workspace"
)

// target is a project whose unit tests karma or jest runs: the default
// application and every library.
type target struct {
	// Project is the workspace entry name; empty without angular.json.
	Project string
	Library bool
	// ConfigDir holds karma.conf.js and tsconfig.spec.json.
	ConfigDir  string
	SourceRoot string
}

// testTargets lists the default project first, then libraries by name.
func testTargets(ws *workspace.Workspace) []target {
	if ws == nil {
		return []target{{ConfigDir: "src", SourceRoot: "src"}}
	}
	targets := []target{{
		Project:    ws.DefaultProject,
		ConfigDir:  ws.SourceRoot(),
		SourceRoot: ws.SourceRoot(),
	}}
	for _, name := range ws.Libraries() {
		targets = append(targets, libraryTarget(ws, name))
	}
	return targets
}

func libraryTarget(ws *workspace.Workspace, name string) target {
	p := ws.Projects[name]
	root := p.Root
	if root == "" {
		root = path.Join(ws.ProjectRoot(), name)
	}
	src := p.SourceRoot
	if src == "" {
		src = path.Join(root, "src")
	}
	return target{Project: name, Library: true, ConfigDir: root, SourceRoot: src}
}

func (t target) karmaConfig() string { return "/" + path.Join(t.ConfigDir, "karma.conf.js") }
func (t target) testEntry() string   { return "/" + path.Join(t.SourceRoot, "test.ts") }
func (t target) specConfig() string  { return "/" + path.Join(t.ConfigDir, "tsconfig.spec.json") }

// buildConfig is the tsconfig that must not compile the karma entry file.
func (t target) buildConfig() string {
	if t.Library {
		return "/" + path.Join(t.ConfigDir, "tsconfig.lib.json")
	}
	return "/" + path.Join(t.ConfigDir, "tsconfig.app.json")
}

// testEntryRel is test.ts relative to ConfigDir, as tsconfig files list it.
func (t target) testEntryRel() string {
	return relative(t.ConfigDir, path.Join(t.SourceRoot, "test.ts"))
}

// specFiles is the "files" list of a karma tsconfig.spec.json.
func (t target) specFiles() []string {
	if t.Library {
		return []string{t.testEntryRel()}
	}
	return []string{t.testEntryRel(), relative(t.ConfigDir, path.Join(t.SourceRoot, "polyfills.ts"))}
}

func (t target) coverageDir() string {
	if t.Library {
		return up(t.ConfigDir) + "coverage/" + t.Project
	}
	return up(t.ConfigDir) + "coverage"
}

// up returns the "../" prefix leading from dir back to the workspace root.
func up(dir string) string {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "" || dir == "." {
		return ""
	}
	return strings.Repeat("../", strings.Count(dir, "/")+1)
}

// relative returns p relative to dir when p is below it.
func relative(dir, p string) string {
	dir = strings.Trim(path.Clean(dir), "/")
	p = strings.Trim(path.Clean(p), "/")
	if dir == "" || dir == "." {
		return p
	}
	if strings.HasPrefix(p, dir+"/") {
		return strings.TrimPrefix(p, dir+"/")
	}
	return up(dir) + p
}
