// Package toolchain implements the installation pipeline: a short, linear
// sequence of named steps that fetches a toolchain's sources, builds them
// with the native build system and places the binaries in the configured
// prefix.
package toolchain

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/bihealth/seahorse/pkg/config"
)

// ErrSkipped is returned by a step whose skip condition holds. The pipeline
// records the step as skipped and moves on.
var ErrSkipped = eris.New("step skipped")

// ExistsFunc checks whether a path exists
type ExistsFunc func(path string) (bool, error)

// DefaultExists checks the real filesystem
func DefaultExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if eris.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, eris.Wrapf(err, "Failed to check %s", path)
}

// Env carries everything a step needs. Runner and Exists are injectable so
// the skip logic can be tested without touching the real filesystem.
type Env struct {
	Config *config.Config
	Runner Runner
	Exists ExistsFunc
	DryRun bool
}

// StepFunc executes a single step of the pipeline
type StepFunc func(ctx context.Context, env *Env) error

// Step is one named unit of the installation pipeline. A failing step halts
// the run unless it is marked best-effort.
type Step struct {
	Name       string
	BestEffort bool
	Run        StepFunc
}

// RunReport summarizes a pipeline run
type RunReport struct {
	Executed           []string
	Skipped            []string
	BestEffortFailures []string
}

// RunSteps executes the given steps in order. The first failure halts the
// run and is returned, except for best-effort steps whose failures are
// logged and recorded in the report instead.
func RunSteps(ctx context.Context, env *Env, steps []Step) (*RunReport, error) {
	report := &RunReport{}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log(ctx).Debug().
			Str("step", step.Name).
			Msg("starting")

		err := step.Run(ctx, env)
		if err != nil {
			if eris.Is(err, ErrSkipped) {
				log(ctx).Info().
					Str("step", step.Name).
					Msg("skipped")

				report.Skipped = append(report.Skipped, step.Name)
				continue
			}

			if step.BestEffort {
				log(ctx).Warn().
					Str("step", step.Name).
					Err(err).
					Msg("failed but is marked best-effort, continuing")

				report.BestEffortFailures = append(report.BestEffortFailures, step.Name)
				continue
			}

			return report, eris.Wrapf(err, "Step %s failed", step.Name)
		}

		report.Executed = append(report.Executed, step.Name)
	}

	return report, nil
}

// NewEnv builds a pipeline environment with the real filesystem and
// the given runner
func NewEnv(cfg *config.Config, runner Runner) *Env {
	return &Env{
		Config: cfg,
		Runner: runner,
		Exists: DefaultExists,
	}
}

// used by both the source and prebuilt paths
func ensureDir(env *Env, path string) error {
	if env.DryRun {
		return nil
	}

	err := os.MkdirAll(path, 0770)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", path)
	}

	return nil
}
