package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentic-research/rigger/api"
)

var (
	testFramework string
	useJest       bool
	e2eFramework  string
)

func init() {
	essentialsCmd.Flags().StringVar(&testFramework, "test-framework", "", "Unit-test runner: karma or jest")
	essentialsCmd.Flags().BoolVar(&useJest, "jest", false, "Shorthand for --test-framework jest")
	essentialsCmd.Flags().StringVar(&e2eFramework, "e2e", "", "End-to-end framework: protractor, cypress or testcafe")
	rootCmd.AddCommand(essentialsCmd)
}

var essentialsCmd = &cobra.Command{
	Use:   "essentials",
	Short: "Apply the essentials chain: test runners, e2e tooling, prettier and pinned versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		invocation := api.Options{
			TestFramework: api.TestFramework(testFramework),
			E2E:           api.E2EFramework(e2eFramework),
		}
		if useJest {
			if testFramework != "" && invocation.TestFramework != api.FrameworkJest {
				return fmt.Errorf("%w: --jest conflicts with --test-framework %s", api.ErrInvalidOptions, testFramework)
			}
			invocation.TestFramework = api.FrameworkJest
		}
		if err := invocation.WithDefaults().Validate(); err != nil {
			return err
		}

		engine, req, err := newEngine(cmd)
		if err != nil {
			return err
		}
		req.Options = invocation

		res, err := engine.Essentials(cmd.Context(), req)
		printResult(cmd.OutOrStdout(), res)
		if err != nil {
			return err
		}
		warnOverridden(engine.Logger, invocation, res.Options)
		fmt.Fprintf(cmd.OutOrStdout(), "Applied essentials (%s).\n", describe(res.Options))
		return nil
	},
}

// warnOverridden reports explicit flags that a persisted record replaced.
func warnOverridden(logger *slog.Logger, invocation, resolved api.Options) {
	if resolved.FirstRun {
		return
	}
	if invocation.TestFramework != "" && invocation.TestFramework != resolved.TestFramework {
		logger.Warn("persisted choice overrides flag",
			slog.String("flag", "test-framework"),
			slog.String("requested", string(invocation.TestFramework)),
			slog.String("persisted", string(resolved.TestFramework)),
		)
	}
	if invocation.E2E != "" && invocation.E2E != resolved.E2E {
		logger.Warn("persisted choice overrides flag",
			slog.String("flag", "e2e"),
			slog.String("requested", string(invocation.E2E)),
			slog.String("persisted", string(resolved.E2E)),
		)
	}
}
