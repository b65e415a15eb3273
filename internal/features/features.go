// Package features holds the rule sets rigger composes into chains.
//
// Each feature is a micro-chain that first removes the artifacts of the
// features competing with it, then patches JSON configuration and finally
// adds its own files. Exclusivity is decided from the resolved options,
// never from the position of a feature in the chain, and every step is
// idempotent so a re-run with the same options leaves the tree unchanged.
package features

import (
	"errors"
	"fmt"
	"path"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/options"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/templates"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
	"github.com/agentic-research/rigger/internal/workspace"
)

const (
	packageJSON  = "/package.json"
	tsconfigJSON = "/tsconfig.json"
	tslintJSON   = "/tslint.json"
	jestConfig   = "/jest.config.js"
)

var (
	ErrWorkspaceRequired = errors.New("angular.json required")
	ErrProjectExists     = errors.New("project already exists")
)

// Deps are the collaborators feature rules render and pin versions with.
type Deps struct {
	Catalog   versions.Catalog
	Templates *templates.Renderer
}

// Essentials returns the top-level chain of the essentials command.
func Essentials(deps Deps) []rule.Rule {
	return []rule.Rule{
		Karma(deps),
		Jest(deps),
		Protractor(deps),
		Cypress(deps),
		Testcafe(deps),
		Common(deps),
	}
}

// Library returns the chain that scaffolds the library name.
func Library(name string, deps Deps) []rule.Rule {
	return []rule.Rule{
		LibraryBase(name, deps),
		LibraryEssentials(name),
		LibraryJest(name, deps),
	}
}

// Common adds the formatting setup every workspace gets, pins all
// dependency versions and records the resolved options.
func Common(deps Deps) rule.Rule {
	return rule.Chain("common",
		rule.New("prettier-files", func(t *tree.Tree, _ api.Options) error {
			return renderDir(t, deps, "essentials", "/", nil, false)
		}),
		rule.New("prettier-dependencies", func(t *tree.Tree, _ api.Options) error {
			return addPackages(t, deps.Catalog.Feature(versions.Essentials))
		}),
		rule.New("format-script", func(t *tree.Tree, _ api.Options) error {
			return setIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "format"), formatScript)
		}),
		rule.New("tslint-prettier", extendTslint),
		rule.New("pin-versions", pinVersions),
		options.Persist(),
	)
}

const formatScript = `prettier --write "**/*.{ts,js,json,scss,css,html,md}"`

const tslintPrettier = "tslint-config-prettier"

// extendTslint makes the root tslint config extend tslint-config-prettier,
// keeping any configs it already extends.
func extendTslint(t *tree.Tree, _ api.Options) error {
	if !t.Exists(tslintJSON) {
		return nil
	}
	return jsonpatch.Update(t, tslintJSON, func(d *jsonpatch.Document) error {
		var current any
		if _, err := d.Lookup("extends", &current); err != nil {
			return err
		}
		var extends []any
		switch v := current.(type) {
		case string:
			extends = []any{v}
		case []any:
			extends = v
		}
		for _, e := range extends {
			if e == tslintPrettier {
				return nil
			}
		}
		return d.Set("extends", append(extends, tslintPrettier))
	})
}

func pinVersions(t *tree.Tree, _ api.Options) error {
	if !t.Exists(packageJSON) {
		return nil
	}
	return jsonpatch.StripVersionRangePrefixes(t, packageJSON, "dependencies", "devDependencies", "optionalDependencies")
}

// deleteIfExists deletes every tracked path among paths.
func deleteIfExists(t *tree.Tree, paths ...string) error {
	for _, p := range paths {
		if !t.Exists(p) {
			continue
		}
		if err := t.Delete(p); err != nil {
			return err
		}
	}
	return nil
}

// deleteGlob deletes every tracked path matching pattern.
func deleteGlob(t *tree.Tree, pattern string) error {
	matches, err := t.Glob(pattern)
	if err != nil {
		return err
	}
	return deleteIfExists(t, matches...)
}

// renderDir renders the template directory dir below dest. Existing
// files are kept unless overwrite is set.
func renderDir(t *tree.Tree, deps Deps, dir, dest string, data templates.Data, overwrite bool) error {
	files, err := deps.Templates.RenderDir(dir, data)
	if err != nil {
		return err
	}
	for _, f := range files {
		p := path.Join(dest, f.Path)
		if err := writeFile(t, p, f.Content, overwrite); err != nil {
			return err
		}
	}
	return nil
}

// renderFile renders one template to p.
func renderFile(t *tree.Tree, deps Deps, name, p string, data templates.Data, overwrite bool) error {
	content, err := deps.Templates.Render(name, data)
	if err != nil {
		return err
	}
	return writeFile(t, p, content, overwrite)
}

func writeFile(t *tree.Tree, p string, content []byte, overwrite bool) error {
	if overwrite {
		return t.Write(p, content)
	}
	if t.Exists(p) {
		return nil
	}
	return t.Create(p, content)
}

// setIfExists sets keyPath in the JSON file p when p is tracked.
func setIfExists(t *tree.Tree, p, keyPath string, v any) error {
	if !t.Exists(p) {
		return nil
	}
	return jsonpatch.Set(t, p, keyPath, v)
}

// removeIfExists removes keyPaths from the JSON file p when p is tracked.
func removeIfExists(t *tree.Tree, p string, keyPaths ...string) error {
	if !t.Exists(p) {
		return nil
	}
	return jsonpatch.RemoveKeys(t, p, keyPaths...)
}

// addPackages pins pkgs in package.json. A package already listed under
// "dependencies" is updated there; every other one goes to
// "devDependencies".
func addPackages(t *tree.Tree, pkgs versions.Packages) error {
	if !t.Exists(packageJSON) || len(pkgs) == 0 {
		return nil
	}
	return jsonpatch.Update(t, packageJSON, func(d *jsonpatch.Document) error {
		for _, name := range pkgs.Names() {
			section := "devDependencies"
			if ok, err := d.Has(jsonpatch.KeyPath("dependencies", name)); err != nil {
				return err
			} else if ok {
				section = "dependencies"
			}
			if err := d.Set(jsonpatch.KeyPath(section, name), pkgs[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

// addMissingPackages adds the packages of pkgs that package.json does not
// list yet, keeping the versions of those it does.
func addMissingPackages(t *tree.Tree, pkgs versions.Packages) error {
	if !t.Exists(packageJSON) || len(pkgs) == 0 {
		return nil
	}
	return jsonpatch.Update(t, packageJSON, func(d *jsonpatch.Document) error {
		for _, name := range pkgs.Names() {
			listed := false
			for _, section := range []string{"dependencies", "devDependencies"} {
				ok, err := d.Has(jsonpatch.KeyPath(section, name))
				if err != nil {
					return err
				}
				listed = listed || ok
			}
			if listed {
				continue
			}
			if err := d.Set(jsonpatch.KeyPath("devDependencies", name), pkgs[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

// removePackages drops pkgs from every dependency section of package.json.
func removePackages(t *tree.Tree, pkgs versions.Packages) error {
	var keyPaths []string
	for _, name := range pkgs.Names() {
		keyPaths = append(keyPaths,
			jsonpatch.KeyPath("dependencies", name),
			jsonpatch.KeyPath("devDependencies", name),
		)
	}
	if len(keyPaths) == 0 {
		return nil
	}
	return removeIfExists(t, packageJSON, keyPaths...)
}

// removeArrayItem drops item from the string array at keyPath of p.
func removeArrayItem(t *tree.Tree, p, keyPath, item string) error {
	if !t.Exists(p) {
		return nil
	}
	return jsonpatch.Update(t, p, func(d *jsonpatch.Document) error {
		var items []string
		if ok, err := d.Lookup(keyPath, &items); err != nil || !ok {
			return err
		}
		kept := items[:0]
		for _, it := range items {
			if it != item {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(items) {
			return nil
		}
		return d.Set(keyPath, kept)
	})
}

// prependArrayItem puts item first in the string array at keyPath of p
// unless the array already holds it.
func prependArrayItem(t *tree.Tree, p, keyPath, item string) error {
	if !t.Exists(p) {
		return nil
	}
	return jsonpatch.Update(t, p, func(d *jsonpatch.Document) error {
		var items []string
		if _, err := d.Lookup(keyPath, &items); err != nil {
			return err
		}
		for _, it := range items {
			if it == item {
				return nil
			}
		}
		return d.Set(keyPath, append([]string{item}, items...))
	})
}

// loadWorkspace reads angular.json, failing when it is absent.
func loadWorkspace(t *tree.Tree) (*workspace.Workspace, error) {
	ws, err := workspace.Load(t)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("%w: %s not found", ErrWorkspaceRequired, workspace.File)
	}
	return ws, nil
}
