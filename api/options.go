package api

import (
	"errors"
	"fmt"
)

// ToolIdentity is the key under which rigger persists its choices in a
// project's "schematics" section of angular.json.
const ToolIdentity = "@agentic-research/rigger"

var ErrInvalidOptions = errors.New("invalid options")

// TestFramework selects the unit-test runner of a workspace.
type TestFramework string

const (
	// FrameworkKarma is the Angular CLI default (karma + jasmine).
	FrameworkKarma TestFramework = "karma"
	// FrameworkJest replaces karma with jest via @angular-builders/jest.
	FrameworkJest TestFramework = "jest"
)

// E2EFramework selects the end-to-end test tooling of a workspace.
type E2EFramework string

const (
	// E2EProtractor is the Angular CLI default.
	E2EProtractor E2EFramework = "protractor"
	E2ECypress    E2EFramework = "cypress"
	E2ETestcafe   E2EFramework = "testcafe"
)

// Options is the resolved configuration of one chain execution.
// It is passed by value, so every rule sees the same choices.
type Options struct {
	// TestFramework is the unit-test runner (default karma).
	TestFramework TestFramework `json:"testFramework,omitempty"`
	// E2E is the end-to-end framework (default protractor).
	E2E E2EFramework `json:"e2e,omitempty"`
	// FirstRun is true when no persisted record was found.
	FirstRun bool `json:"-"`
}

// Record is the persisted form of Options stored in angular.json.
// The boolean layout is the wire format older workspaces already carry.
type Record struct {
	Jest     bool `json:"jest"`
	Cypress  bool `json:"cypress"`
	Testcafe bool `json:"testcafe"`
}

// WithDefaults fills unset choices with the Angular CLI defaults.
func (o Options) WithDefaults() Options {
	if o.TestFramework == "" {
		o.TestFramework = FrameworkKarma
	}
	if o.E2E == "" {
		o.E2E = E2EProtractor
	}
	return o
}

// Validate reports unknown framework names.
func (o Options) Validate() error {
	switch o.TestFramework {
	case FrameworkKarma, FrameworkJest:
	default:
		return fmt.Errorf("%w: unknown test framework %q", ErrInvalidOptions, o.TestFramework)
	}
	switch o.E2E {
	case E2EProtractor, E2ECypress, E2ETestcafe:
	default:
		return fmt.Errorf("%w: unknown e2e framework %q", ErrInvalidOptions, o.E2E)
	}
	return nil
}

// Jest reports whether jest is the selected unit-test runner.
func (o Options) Jest() bool { return o.TestFramework == FrameworkJest }

// Record converts the options into their persisted form.
func (o Options) Record() Record {
	return Record{
		Jest:     o.TestFramework == FrameworkJest,
		Cypress:  o.E2E == E2ECypress,
		Testcafe: o.E2E == E2ETestcafe,
	}
}

// Apply overrides the feature choices of o with the persisted record.
// Cypress and testcafe are mutually exclusive; a record carrying both is invalid.
func (r Record) Apply(o Options) (Options, error) {
	if r.Cypress && r.Testcafe {
		return o, fmt.Errorf("%w: cypress and testcafe are both enabled", ErrInvalidOptions)
	}
	o.TestFramework = FrameworkKarma
	if r.Jest {
		o.TestFramework = FrameworkJest
	}
	switch {
	case r.Cypress:
		o.E2E = E2ECypress
	case r.Testcafe:
		o.E2E = E2ETestcafe
	default:
		o.E2E = E2EProtractor
	}
	return o, nil
}
