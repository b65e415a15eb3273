// Package install runs the package manager once the tree is committed.
package install

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Installer installs the dependencies listed in the committed workspace.
type Installer interface {
	Install(ctx context.Context) error
}

// Func adapts a function to Installer.
type Func func(ctx context.Context) error

func (f Func) Install(ctx context.Context) error { return f(ctx) }

// NpmInstaller runs "<Command> install" in Dir.
type NpmInstaller struct {
	Dir string
	// Command is the package manager client, "npm" when empty.
	Command string
	Stdout  io.Writer
	Stderr  io.Writer
}

func (n *NpmInstaller) Install(ctx context.Context) error {
	client := n.Command
	if client == "" {
		client = "npm"
	}
	cmd := exec.CommandContext(ctx, client, "install")
	cmd.Dir = n.Dir
	cmd.Stdout = n.Stdout
	cmd.Stderr = n.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s install failed: %w", client, err)
	}
	return nil
}
