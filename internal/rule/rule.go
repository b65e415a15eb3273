// Package rule composes tree transformations into ordered chains.
//
// A Rule is either a leaf that applies one transformation or a group whose
// children run as a micro-chain. The Executor runs rules strictly in order
// against one shared tree, so every rule observes the mutations of the
// rules before it. The first failure stops the chain; mutations already
// applied are kept and the caller decides whether to commit.
package rule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/tree"
)

// Func is a single transformation of the tree.
type Func func(t *tree.Tree, opts api.Options) error

// Rule is a named, stateless transformation.
type Rule struct {
	// Name identifies the rule in logs and errors.
	Name string
	// When gates the rule; nil means always. A false result skips the
	// rule and all of its children without touching the tree.
	When func(opts api.Options) bool
	// Apply is the transformation of a leaf rule.
	Apply Func
	// Rules are the children of a group rule, run in order after Apply.
	Rules []Rule
}

// New returns a leaf rule.
func New(name string, fn Func) Rule {
	return Rule{Name: name, Apply: fn}
}

// Chain groups rules into a single rule that runs them in order.
func Chain(name string, rules ...Rule) Rule {
	return Rule{Name: name, Rules: rules}
}

// If groups rules that only run when cond holds for the resolved options.
func If(name string, cond func(opts api.Options) bool, rules ...Rule) Rule {
	return Rule{Name: name, When: cond, Rules: rules}
}

// Error reports the rule that stopped a chain.
type Error struct {
	// Rule is the slash-joined path of the failing rule, e.g. "essentials/jest/config".
	Rule string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Executor runs rule chains.
type Executor struct {
	Logger *slog.Logger
}

// NewExecutor returns an executor logging to logger, or slog.Default() when nil.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Logger: logger}
}

// Run applies rules in order to t. All rules see the same opts.
// On failure it returns an *Error naming the failing rule.
func (e *Executor) Run(rules []Rule, t *tree.Tree, opts api.Options) error {
	for _, r := range rules {
		if err := e.run(r, "", t, opts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) run(r Rule, parent string, t *tree.Tree, opts api.Options) error {
	name := r.Name
	if parent != "" {
		name = parent + "/" + r.Name
	}
	if r.When != nil && !r.When(opts) {
		e.logger().Debug("rule skipped", slog.String("rule", name))
		return nil
	}
	if r.Apply != nil {
		e.logger().Debug("rule applied", slog.String("rule", name))
		if err := r.Apply(t, opts); err != nil {
			var re *Error
			if errors.As(err, &re) {
				return err
			}
			return &Error{Rule: name, Err: err}
		}
	}
	for _, child := range r.Rules {
		if err := e.run(child, name, t, opts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
