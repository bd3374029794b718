// Package vcs checks out and updates packages tracked by a version control
// system instead of an archive.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Client checks out and refreshes a working copy
type Client interface {
	// Checkout creates a working copy of url at dest
	Checkout(ctx context.Context, url, revision, dest string) error
	// Update brings the working copy at dest to revision, or to the
	// latest revision when revision is empty
	Update(ctx context.Context, dest, revision string) error
}

// Runner runs an external command in dir
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	log logrus.FieldLogger
}

// NewExecRunner creates a runner logging commands at debug level
func NewExecRunner(log logrus.FieldLogger) *ExecRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExecRunner{log: log}
}

// Run executes name with args. The command output is included in the
// returned error.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	r.log.Debugf("Running %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return nil
}

// New returns the client for system, "svn" or "git"
func New(system string, runner Runner) (Client, error) {
	switch system {
	case "svn":
		return &Svn{runner: runner}, nil
	case "git":
		return &Git{runner: runner}, nil
	default:
		return nil, fmt.Errorf("unsupported version control system: %s", system)
	}
}

// Svn drives the svn command line client
type Svn struct {
	runner Runner
}

// Checkout runs svn checkout
func (s *Svn) Checkout(ctx context.Context, url, revision, dest string) error {
	args := []string{"checkout", "--non-interactive", url, dest}
	if revision != "" {
		args = append(args, "--revision", revision)
	}
	return s.runner.Run(ctx, "", "svn", args...)
}

// Update runs svn update in the working copy
func (s *Svn) Update(ctx context.Context, dest, revision string) error {
	args := []string{"update", "--non-interactive"}
	if revision != "" {
		args = append(args, "--revision", revision)
	}
	return s.runner.Run(ctx, dest, "svn", args...)
}

// Git drives the git command line client
type Git struct {
	runner Runner
}

// Checkout clones url into dest and checks out revision if given
func (g *Git) Checkout(ctx context.Context, url, revision, dest string) error {
	if err := g.runner.Run(ctx, "", "git", "clone", "--quiet", url, dest); err != nil {
		return err
	}
	if revision == "" {
		return nil
	}
	return g.runner.Run(ctx, dest, "git", "checkout", "--quiet", revision)
}

// Update fetches and moves the working copy to revision, or fast-forwards
// the current branch
func (g *Git) Update(ctx context.Context, dest, revision string) error {
	if err := g.runner.Run(ctx, dest, "git", "fetch", "--quiet", "origin"); err != nil {
		return err
	}
	if revision != "" {
		return g.runner.Run(ctx, dest, "git", "checkout", "--quiet", revision)
	}
	return g.runner.Run(ctx, dest, "git", "merge", "--quiet", "--ff-only")
}
