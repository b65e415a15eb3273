package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/generate"
	"github.com/agentic-research/rigger/internal/install"
	"github.com/agentic-research/rigger/internal/tree"
	"github.com/agentic-research/rigger/internal/versions"
)

var (
	workspacePath  string
	dryRun         bool
	skipInstall    bool
	verbose        bool
	versionsPath   string
	packageManager string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspacePath, "path", "p", ".", "Path to the Angular workspace")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing them")
	rootCmd.PersistentFlags().BoolVar(&skipInstall, "skip-install", false, "Do not run the package manager after writing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every rule")
	rootCmd.PersistentFlags().StringVar(&versionsPath, "versions", "", "YAML file overriding pinned package versions")
	rootCmd.PersistentFlags().StringVar(&packageManager, "package-manager", "npm", "Package manager client used to install")
}

var rootCmd = &cobra.Command{
	Use:           "rigger",
	Short:         "rigger: opinionated tooling for Angular CLI workspaces",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newEngine builds the engine for the workspace at workspacePath.
func newEngine(cmd *cobra.Command) (*generate.Engine, generate.Request, error) {
	dir, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, generate.Request{}, fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, generate.Request{}, fmt.Errorf("workspace: %w", err)
	} else if !info.IsDir() {
		return nil, generate.Request{}, fmt.Errorf("workspace: %s is not a directory", dir)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	catalog, err := versions.LoadFile(versionsPath)
	if err != nil {
		return nil, generate.Request{}, err
	}

	engine, err := generate.New(logger, &install.NpmInstaller{
		Dir:     dir,
		Command: packageManager,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, generate.Request{}, err
	}
	engine.Catalog = catalog

	return engine, generate.Request{
		FS:          osfs.New(dir),
		DryRun:      dryRun,
		SkipInstall: skipInstall,
	}, nil
}

// printResult writes one line per change, e.g. "CREATE /jest.config.js (203 bytes)".
func printResult(w io.Writer, res *generate.Result) {
	if res == nil {
		return
	}
	for _, c := range res.Changes {
		if c.State == tree.Deleted {
			fmt.Fprintf(w, "%s %s\n", c.State, c.Path)
			continue
		}
		fmt.Fprintf(w, "%s %s (%d bytes)\n", c.State, c.Path, c.Size)
	}
	if len(res.Changes) == 0 {
		fmt.Fprintln(w, "Nothing to do.")
	}
	if dryRun {
		fmt.Fprintln(w, "Dry run: no changes were written.")
	}
}

func describe(opts api.Options) string {
	return fmt.Sprintf("test framework %s, e2e %s", opts.TestFramework, opts.E2E)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
