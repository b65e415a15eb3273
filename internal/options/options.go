// Package options resolves the effective options of a chain run from the
// invocation flags and the choices persisted in the workspace.
package options

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/jsonpatch"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/workspace"
)

// Resolve merges invocation with the record persisted in angular.json.
//
// Without angular.json, or without a persisted record for this tool, the
// invocation options are used and FirstRun is true. With a record,
// FirstRun is false and the persisted choices replace the invocation's
// feature flags, so a re-run re-applies what was chosen before.
func Resolve(t *tree.Tree, invocation api.Options) (api.Options, error) {
	opts := invocation.WithDefaults()
	opts.FirstRun = true

	ws, err := workspace.Load(t)
	if err != nil {
		return opts, err
	}
	if ws != nil {
		if raw, ok := ws.Default().Schematics[api.ToolIdentity]; ok {
			var record api.Record
			if err := json.Unmarshal(raw, &record); err != nil {
				return opts, fmt.Errorf("%w: %s: %s: %v", workspace.ErrMalformedConfig, workspace.File, api.ToolIdentity, err)
			}
			if opts, err = record.Apply(opts); err != nil {
				return opts, err
			}
			opts.FirstRun = false
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Persist returns a rule that records the resolved choices in the default
// project of angular.json. Workspaces without angular.json are left alone.
func Persist() rule.Rule {
	return rule.New("persist-options", func(t *tree.Tree, opts api.Options) error {
		ws, err := workspace.Load(t)
		if err != nil || ws == nil {
			return err
		}
		return jsonpatch.MergeInto(t, workspace.File, map[string]any{
			"projects": map[string]any{
				ws.DefaultProject: map[string]any{
					"schematics": map[string]any{
						api.ToolIdentity: opts.Record(),
					},
				},
			},
		})
	})
}
