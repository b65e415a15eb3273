// Package generate ties the pieces together: it loads a workspace into a
// virtual tree, resolves options, runs a feature chain, commits the tree
// and triggers the package install.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/features"
	"github.com/agentic-research/rigger/internal/install"
	"github.com/agentic-research/rigger/internal/options"
	"github.com/agentic-research/rigger/internal/rule"
	"github.com/agentic-research/rigger/internal/templates"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
)

// Request describes one invocation.
type Request struct {
	// FS is the workspace the tree is loaded from and committed to.
	FS      billy.Filesystem
	Options api.Options
	// DryRun runs the chain without committing or installing.
	DryRun      bool
	SkipInstall bool
	// Ignore overrides tree.DefaultIgnore when loading FS.
	Ignore []string
}

// Result is the outcome of a run.
type Result struct {
	Options api.Options
	Changes []tree.Change
}

// Engine runs feature chains against workspaces.
type Engine struct {
	Logger    *slog.Logger
	Catalog   versions.Catalog
	Templates *templates.Renderer
	// Installer runs after a successful commit; nil disables it.
	Installer install.Installer
}

// New returns an engine with the embedded version catalog and templates.
func New(logger *slog.Logger, installer install.Installer) (*Engine, error) {
	catalog, err := versions.Default()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger:    logger,
		Catalog:   catalog,
		Templates: templates.New(),
		Installer: installer,
	}, nil
}

// Essentials applies the essentials chain.
func (e *Engine) Essentials(ctx context.Context, req Request) (*Result, error) {
	return e.run(ctx, req, "essentials", features.Essentials(e.deps()))
}

// Library scaffolds the library name.
func (e *Engine) Library(ctx context.Context, req Request, name string) (*Result, error) {
	return e.run(ctx, req, "library", features.Library(name, e.deps()))
}

func (e *Engine) deps() features.Deps {
	return features.Deps{Catalog: e.Catalog, Templates: e.Templates}
}

func (e *Engine) run(ctx context.Context, req Request, name string, rules []rule.Rule) (*Result, error) {
	logger := e.logger().With(slog.String("chain", name))

	t, err := tree.Load(req.FS, req.Ignore...)
	if err != nil {
		return nil, err
	}
	opts, err := options.Resolve(t, req.Options)
	if err != nil {
		return nil, fmt.Errorf("resolve options: %w", err)
	}
	logger.Debug("options resolved",
		slog.String("test_framework", string(opts.TestFramework)),
		slog.String("e2e", string(opts.E2E)),
		slog.Bool("first_run", opts.FirstRun),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := rule.NewExecutor(logger).Run([]rule.Rule{rule.Chain(name, rules...)}, t, opts); err != nil {
		return nil, err
	}

	res := &Result{Options: opts}
	if req.DryRun {
		res.Changes = t.Changes()
		logger.Info("dry run, nothing written", slog.Int("changes", len(res.Changes)))
		return res, nil
	}
	if res.Changes, err = t.Commit(req.FS); err != nil {
		return res, err
	}
	logger.Info("tree committed", slog.Int("changes", len(res.Changes)))

	if req.SkipInstall || e.Installer == nil {
		return res, nil
	}
	if err := e.Installer.Install(ctx); err != nil {
		return res, fmt.Errorf("install: %w", err)
	}
	return res, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
