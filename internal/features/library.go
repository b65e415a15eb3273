package features

import (
	"fmt"
	"path"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/templates"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
	"github.com/agentic-research/rigger/internal/workspace"
)

const ngPackagrBuilder = "@angular-devkit/build-ng-packagr:build"

// LibraryBase scaffolds the library below newProjectRoot and registers it
// in angular.json and tsconfig.json.
func LibraryBase(name string, deps Deps) rule.Rule {
	lib := dasherize(name)
	return rule.Chain("library-base",
		rule.New("files", func(t *tree.Tree, _ api.Options) error {
			if lib == "" {
				return fmt.Errorf("%w: library name %q", api.ErrInvalidOptions, name)
			}
			ws, err := loadWorkspace(t)
			if err != nil {
				return err
			}
			if _, ok := ws.Projects[lib]; ok {
				return fmt.Errorf("%w: %s", ErrProjectExists, lib)
			}
			root := path.Join(ws.ProjectRoot(), lib)
			files, err := deps.Templates.RenderDir("library", templates.Data{
				"Name":      lib,
				"ClassName": classify(lib),
				"Up":        up(root),
			})
			if err != nil {
				return err
			}
			for _, f := range files {
				if err := t.Create(path.Join("/", root, f.Path), f.Content); err != nil {
					return err
				}
			}
			tg := target{Project: lib, Library: true, ConfigDir: root, SourceRoot: path.Join(root, "src")}
			if err := renderFile(t, deps, "karma/karma.conf.js", tg.karmaConfig(),
				templates.Data{"CoverageDir": tg.coverageDir()}, false); err != nil {
				return err
			}
			return renderFile(t, deps, "karma/test.ts", tg.testEntry(), nil, false)
		}),
		rule.New("register", func(t *tree.Tree, _ api.Options) error {
			ws, err := loadWorkspace(t)
			if err != nil {
				return err
			}
			root := path.Join(ws.ProjectRoot(), lib)
			src := path.Join(root, "src")
			return jsonpatch.Set(t, workspace.File, jsonpatch.KeyPath("projects", lib), projectEntry{
				Root:        root,
				SourceRoot:  src,
				ProjectType: "library",
				Prefix:      "lib",
				Architect: map[string]targetEntry{
					"build": {
						Builder: ngPackagrBuilder,
						Options: map[string]any{
							"tsConfig": path.Join(root, "tsconfig.lib.json"),
							"project":  path.Join(root, "ng-package.json"),
						},
					},
					"test": {
						Builder: karmaBuilder,
						Options: map[string]any{
							"main":        path.Join(src, "test.ts"),
							"tsConfig":    path.Join(root, "tsconfig.spec.json"),
							"karmaConfig": path.Join(root, "karma.conf.js"),
						},
					},
					"lint": {
						Builder: tslintBuilder,
						Options: map[string]any{
							"tsConfig": []string{path.Join(root, "tsconfig.lib.json"), path.Join(root, "tsconfig.spec.json")},
							"exclude":  []string{"**/node_modules/**"},
						},
					},
				},
			})
		}),
		rule.New("paths", func(t *tree.Tree, _ api.Options) error {
			if !t.Exists(tsconfigJSON) {
				return nil
			}
			return jsonpatch.MergeInto(t, tsconfigJSON, map[string]any{
				"compilerOptions": map[string]any{
					"paths": map[string]any{
						lib:        []string{"dist/" + lib},
						lib + "/*": []string{"dist/" + lib + "/*"},
					},
				},
			})
		}),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addPackages(t, deps.Catalog.Feature(versions.Library))
		}),
	)
}

// LibraryEssentials relaxes the library lint config and pins versions.
func LibraryEssentials(name string) rule.Rule {
	lib := dasherize(name)
	return rule.Chain("library-essentials",
		rule.New("tslint", func(t *tree.Tree, _ api.Options) error {
			ws, err := loadWorkspace(t)
			if err != nil {
				return err
			}
			tg := libraryTarget(ws, lib)
			return setIfExists(t, "/"+path.Join(tg.ConfigDir, "tslint.json"),
				jsonpatch.KeyPath("rules", "no-implicit-dependencies"), false)
		}),
		rule.New("pin-versions", pinVersions),
	)
}

// LibraryJest moves the new library to jest when jest is the workspace's
// unit-test runner and adds its root to the jest config.
func LibraryJest(name string, deps Deps) rule.Rule {
	lib := dasherize(name)
	return rule.If("library-jest", usesJest,
		rule.New("target", func(t *tree.Tree, _ api.Options) error {
			ws, err := loadWorkspace(t)
			if err != nil {
				return err
			}
			return jestTarget(t, libraryTarget(ws, lib))
		}),
		rule.New("config", func(t *tree.Tree, _ api.Options) error {
			return renderJestConfig(t, deps)
		}),
	)
}
