package toolchain

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Runner abstracts external command execution so the pipeline can be
// exercised without git, cmake or a package manager installed.
type Runner interface {
	// Run executes the command in the given directory with stdout/stderr
	// wired to the parent process.
	Run(ctx context.Context, dir string, name string, args ...string) error
	// Output executes the command and returns its combined output.
	Output(ctx context.Context, dir string, name string, args ...string) (string, error)
	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		return eris.Wrapf(err, "%s %s failed", name, strings.Join(args, " "))
	}

	return nil
}

func (execRunner) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), eris.Wrapf(err, "%s %s failed", name, strings.Join(args, " "))
	}

	return string(out), nil
}

func (execRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", eris.Wrapf(err, "%s not found on PATH", name)
	}

	return path, nil
}

// dryRunner only prints the commands it's asked to run
type dryRunner struct{}

// NewDryRunner returns a Runner that logs each command instead of executing it
func NewDryRunner() Runner {
	return dryRunner{}
}

func (dryRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	log(ctx).Info().
		Bool("command", true).
		Str("dir", dir).
		Msg(name + " " + strings.Join(args, " "))

	return nil
}

func (d dryRunner) Output(ctx context.Context, dir string, name string, args ...string) (string, error) {
	err := d.Run(ctx, dir, name, args...)
	return "", err
}

func (dryRunner) LookPath(name string) (string, error) {
	return name, nil
}
