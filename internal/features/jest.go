package features

import (
	"path"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/templates"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
	"github.com/agentic-research/rigger/internal/workspace"
)

const jestBuilder = "@angular-builders/jest:run"

func usesJest(opts api.Options) bool { return opts.Jest() }

// Jest replaces karma with jest in every test target of the workspace.
func Jest(deps Deps) rule.Rule {
	return rule.If("jest", usesJest,
		rule.New("remove-karma", func(t *tree.Tree, opts api.Options) error {
			karma := deps.Catalog.Feature(versions.Karma)
			if opts.E2E == api.E2EProtractor {
				karma = karma.Without(deps.Catalog.Feature(versions.Protractor))
			}
			return removePackages(t, karma)
		}),
		rule.New("targets", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			for _, tg := range testTargets(ws) {
				if err := jestTarget(t, tg); err != nil {
					return err
				}
			}
			return nil
		}),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addPackages(t, deps.Catalog.Feature(versions.Jest))
		}),
		rule.New("setup-files", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			src := "/" + ws.SourceRoot()
			if err := renderFile(t, deps, "jest/setup-jest.ts", src+"/setup-jest.ts", nil, false); err != nil {
				return err
			}
			return renderFile(t, deps, "jest/jest-global-mocks.ts", src+"/jest-global-mocks.ts", nil, false)
		}),
		rule.New("config", func(t *tree.Tree, _ api.Options) error {
			return renderJestConfig(t, deps)
		}),
	)
}

// jestTarget removes the karma files of one project and points its
// tsconfig and builder at jest.
func jestTarget(t *tree.Tree, tg target) error {
	if err := deleteIfExists(t, tg.karmaConfig(), tg.testEntry()); err != nil {
		return err
	}
	spec := tg.specConfig()
	if err := removeIfExists(t, spec, jsonpatch.KeyPath("files")); err != nil {
		return err
	}
	if err := setIfExists(t, spec, jsonpatch.KeyPath("compilerOptions", "module"), "commonjs"); err != nil {
		return err
	}
	if err := setIfExists(t, spec, jsonpatch.KeyPath("compilerOptions", "types"), []string{"jest", "node"}); err != nil {
		return err
	}
	if err := removeArrayItem(t, tg.buildConfig(), jsonpatch.KeyPath("exclude"), tg.testEntryRel()); err != nil {
		return err
	}
	if tg.Project == "" {
		return nil
	}
	test := func(keys ...string) string {
		return workspace.ProjectKeyPath(tg.Project, append([]string{"architect", "test"}, keys...)...)
	}
	if err := jsonpatch.Set(t, workspace.File, test("builder"), jestBuilder); err != nil {
		return err
	}
	return jsonpatch.RemoveKeys(t, workspace.File, test("options", "main"), test("options", "karmaConfig"))
}

// renderJestConfig writes the root jest config, whose roots follow the
// projects currently registered in the workspace.
func renderJestConfig(t *tree.Tree, deps Deps) error {
	ws, err := workspace.Load(t)
	if err != nil {
		return err
	}
	return renderFile(t, deps, "jest/jest.config.js", jestConfig, templates.Data{
		"Roots":     ws.TestRoots(),
		"SetupFile": path.Join(ws.SourceRoot(), "setup-jest.ts"),
	}, true)
}
