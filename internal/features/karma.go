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

const karmaBuilder = "@angular-devkit/build-angular:karma"

func usesKarma(opts api.Options) bool { return !opts.Jest() }

// Karma keeps or restores karma as the unit-test runner and removes
// everything jest added.
func Karma(deps Deps) rule.Rule {
	return rule.If("karma", usesKarma,
		rule.New("remove-jest", func(t *tree.Tree, _ api.Options) error {
			return removeJest(t, deps)
		}),
		rule.New("targets", func(t *tree.Tree, _ api.Options) error {
			ws, err := workspace.Load(t)
			if err != nil {
				return err
			}
			for _, tg := range testTargets(ws) {
				if err := karmaTarget(t, deps, tg); err != nil {
					return err
				}
			}
			return nil
		}),
		rule.New("dependencies", func(t *tree.Tree, _ api.Options) error {
			return addMissingPackages(t, deps.Catalog.Feature(versions.Karma))
		}),
	)
}

// removeJest deletes the workspace-wide jest artifacts.
func removeJest(t *tree.Tree, deps Deps) error {
	ws, err := workspace.Load(t)
	if err != nil {
		return err
	}
	src := "/" + ws.SourceRoot()
	if err := deleteIfExists(t, jestConfig, src+"/setup-jest.ts", src+"/jest-global-mocks.ts"); err != nil {
		return err
	}
	return removePackages(t, deps.Catalog.Feature(versions.Jest))
}

// karmaTarget restores the karma files, tsconfig settings and builder of
// one project.
func karmaTarget(t *tree.Tree, deps Deps, tg target) error {
	if err := renderFile(t, deps, "karma/karma.conf.js", tg.karmaConfig(),
		templates.Data{"CoverageDir": tg.coverageDir()}, false); err != nil {
		return err
	}
	if err := renderFile(t, deps, "karma/test.ts", tg.testEntry(), nil, false); err != nil {
		return err
	}
	spec := tg.specConfig()
	if err := setIfExists(t, spec, jsonpatch.KeyPath("compilerOptions", "types"), []string{"jasmine", "node"}); err != nil {
		return err
	}
	if err := setIfExists(t, spec, jsonpatch.KeyPath("files"), tg.specFiles()); err != nil {
		return err
	}
	if err := prependArrayItem(t, tg.buildConfig(), jsonpatch.KeyPath("exclude"), tg.testEntryRel()); err != nil {
		return err
	}
	if tg.Project == "" {
		return nil
	}
	return jsonpatch.MergeInto(t, workspace.File, map[string]any{
		"projects": map[string]any{
			tg.Project: map[string]any{
				"architect": map[string]any{
					"test": map[string]any{
						"builder": karmaBuilder,
						"options": map[string]any{
							"main":        tg.testEntry()[1:],
							"karmaConfig": tg.karmaConfig()[1:],
						},
					},
				},
			},
		},
	})
}
