package features

import (
	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/templates"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
	"github.com/agentic-research/rigger/internal/workspace"
)

const (
	protractorBuilder = "@angular-devkit/build-angular:protractor"
	tslintBuilder     = "@angular-devkit/build-angular:tslint"
)

// Protractor keeps or restores the Angular CLI e2e setup and removes the
// cypress and testcafe artifacts.
func Protractor(deps Deps) rule.Rule {
	return rule.If("protractor", is(api.E2EProtractor),
		rule.New("remove-cypress", func(t *tree.Tree, _ api.Options) error {
			return removeCypress(t, deps)
		}),
		rule.New("remove-testcafe", func(t *tree.Tree, _ api.Options) error {
			return removeTestcafe(t, deps)
		}),
		rule.New("files", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			return renderDir(t, deps, "protractor", "/e2e", e2eData(ws), false)
		}),
		rule.New("e2e-project", restoreE2EProject),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addMissingPackages(t, deps.Catalog.Feature(versions.Protractor))
		}),
		rule.New("scripts", func(t *tree.Tree, _ api.Options) error {
			return setIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "e2e"), "ng e2e")
		}),
	)
}

// Cypress replaces the e2e setup with cypress.
func Cypress(deps Deps) rule.Rule {
	return rule.If("cypress", is(api.E2ECypress),
		rule.New("remove-protractor", func(t *tree.Tree, opts api.Options) error {
			return removeProtractor(t, deps, opts)
		}),
		rule.New("remove-testcafe", func(t *tree.Tree, _ api.Options) error {
			return removeTestcafe(t, deps)
		}),
		rule.New("files", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			return renderDir(t, deps, "cypress", "/", e2eData(ws), false)
		}),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addPackages(t, deps.Catalog.Feature(versions.Cypress))
		}),
		rule.New("scripts", func(t *tree.Tree, _ api.Options) error {
			if err := setIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "e2e"), "cypress run"); err != nil {
				return err
			}
			return setIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "cypress"), "cypress open")
		}),
	)
}

// Testcafe replaces the e2e setup with testcafe.
func Testcafe(deps Deps) rule.Rule {
	return rule.If("testcafe", is(api.E2ETestcafe),
		rule.New("remove-protractor", func(t *tree.Tree, opts api.Options) error {
			return removeProtractor(t, deps, opts)
		}),
		rule.New("remove-cypress", func(t *tree.Tree, _ api.Options) error {
			return removeCypress(t, deps)
		}),
		rule.New("files", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			return renderDir(t, deps, "testcafe", "/", e2eData(ws), false)
		}),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addPackages(t, deps.Catalog.Feature(versions.Testcafe))
		}),
		rule.New("scripts", func(t *tree.Tree, _ api.Options) error {
			return setIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "e2e"), "testcafe")
		}),
	)
}

func is(e2e api.E2EFramework) func(api.Options) bool {
	return func(opts api.Options) bool { return opts.E2E == e2e }
}

func e2eData(ws *workspace.Workspace) templates.Data {
	project := "app"
	if ws != nil {
		project = ws.DefaultProject
	}
	return templates.Data{"Project": project}
}

// removeProtractor deletes the protractor e2e setup. Packages karma still
// needs stay listed.
func removeProtractor(t *tree.Tree, deps Deps, opts api.Options) error {
	if err := deleteGlob(t, "/e2e/**"); err != nil {
		return err
	}
	ws, err := workspace.Load(t)
	if err != nil {
		return err
	}
	if ws != nil {
		if err := jsonpatch.RemoveKeys(t, workspace.File, jsonpatch.KeyPath("projects", ws.E2EProject())); err != nil {
			return err
		}
	}
	protractor := deps.Catalog.Feature(versions.Protractor)
	if !opts.Jest() {
		protractor = protractor.Without(deps.Catalog.Feature(versions.Karma))
	}
	return removePackages(t, protractor)
}

func removeCypress(t *tree.Tree, deps Deps) error {
	if err := deleteIfExists(t, "/cypress.json"); err != nil {
		return err
	}
	if err := deleteGlob(t, "/cypress/**"); err != nil {
		return err
	}
	if err := removeIfExists(t, packageJSON, jsonpatch.KeyPath("scripts", "cypress")); err != nil {
		return err
	}
	return removePackages(t, deps.Catalog.Feature(versions.Cypress))
}

func removeTestcafe(t *tree.Tree, deps Deps) error {
	if err := deleteIfExists(t, "/.testcaferc.json"); err != nil {
		return err
	}
	if err := deleteGlob(t, "/testcafe/**"); err != nil {
		return err
	}
	return removePackages(t, deps.Catalog.Feature(versions.Testcafe))
}

// restoreE2EProject registers the "<project>-e2e" workspace entry the
// Angular CLI generates, unless it is already present.
func restoreE2EProject(t *tree.Tree, _ api.Options) error {
	ws, err := workspace.Load(t)
	if err != nil || ws == nil {
		return err
	}
	name := ws.E2EProject()
	if _, ok := ws.Projects[name]; ok {
		return nil
	}
	return jsonpatch.Set(t, workspace.File, jsonpatch.KeyPath("projects", name), projectEntry{
		Root:        "e2e/",
		ProjectType: "application",
		Architect: map[string]targetEntry{
			"e2e": {
				Builder: protractorBuilder,
				Options: map[string]any{
					"protractorConfig": "e2e/protractor.conf.js",
					"devServerTarget":  ws.DefaultProject + ":serve",
				},
			},
			"lint": {
				Builder: tslintBuilder,
				Options: map[string]any{
					"tsConfig": "e2e/tsconfig.e2e.json",
					"exclude":  []string{"**/node_modules/**"},
				},
			},
		},
	})
}

// projectEntry is a project of angular.json as rigger writes it.
type projectEntry struct {
	Root        string                 `json:"root"`
	SourceRoot  string                 `json:"sourceRoot,omitempty"`
	ProjectType string                 `json:"projectType"`
	Prefix      string                 `json:"prefix,omitempty"`
	Architect   map[string]targetEntry `json:"architect"`
}

type targetEntry struct {
	Builder string         `json:"builder"`
	Options map[string]any `json:"options,omitempty"`
}
