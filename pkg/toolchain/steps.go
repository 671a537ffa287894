package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/bihealth/seahorse/pkg/manifest"
)

// buildDir is the out-of-tree build directory created inside the checkout
const buildDir = "_build"

// SourceSteps assembles the pipeline that builds the given tool from
// source. Step names are stable; tests and the dry-run output rely on them.
func SourceSteps(name string, tool *manifest.Tool) []Step {
	steps := []Step{
		{Name: "staging", Run: stagingStep},
		{Name: "packages", Run: packagesStep(tool)},
		{Name: "clone", Run: cloneStep(tool)},
		{Name: "submodules", Run: submodulesStep(tool)},
		{Name: "configure", Run: configureStep(tool)},
		{Name: "build", Run: buildStep(tool)},
		{Name: "bindir", Run: bindirStep},
		{Name: "artifacts", Run: artifactsStep(tool)},
		{Name: "hooks", Run: hooksStep(tool)},
	}

	return steps
}

// CleanStep removes the staging directory. It is only part of the pipeline
// in clean mode; resume mode never deletes anything.
func CleanStep() Step {
	return Step{
		Name: "clean",
		Run: func(ctx context.Context, env *Env) error {
			if env.DryRun {
				return nil
			}

			err := os.RemoveAll(env.Config.Staging)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove %s", env.Config.Staging)
			}

			return nil
		},
	}
}

func stagingStep(ctx context.Context, env *Env) error {
	return ensureDir(env, env.Config.Staging)
}

func bindirStep(ctx context.Context, env *Env) error {
	return ensureDir(env, filepath.Join(env.Config.Prefix, "bin"))
}

func packagesStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		if env.Config.Packages.Installer == "none" || len(tool.Packages) == 0 {
			return ErrSkipped
		}

		args := append([]string{"install", "-y"}, tool.Packages...)
		return env.Runner.Run(ctx, "", env.Config.Packages.Installer, args...)
	}
}

func cloneStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		checkout := filepath.Join(env.Config.Staging, tool.Checkout)
		exists, err := env.Exists(checkout)
		if err != nil {
			return err
		}

		if exists {
			// an existing checkout is reused as-is, never updated
			log(ctx).Info().
				Str("step", "clone").
				Msgf("reusing existing checkout %s", checkout)
			return ErrSkipped
		}

		return env.Runner.Run(ctx, env.Config.Staging, "git", "clone", tool.Repo, tool.Checkout)
	}
}

func submodulesStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		if !tool.Submodules {
			return ErrSkipped
		}

		checkout := filepath.Join(env.Config.Staging, tool.Checkout)
		return env.Runner.Run(ctx, checkout, "git", "submodule", "update", "--init", "--recursive")
	}
}

func configureStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		checkout := filepath.Join(env.Config.Staging, tool.Checkout)
		args := []string{"-S", ".", "-B", buildDir, "-DCMAKE_INSTALL_PREFIX=" + env.Config.Prefix}
		args = append(args, tool.CMake.Options...)

		return env.Runner.Run(ctx, checkout, "cmake", args...)
	}
}

func buildStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		checkout := filepath.Join(env.Config.Staging, tool.Checkout)
		jobs := fmt.Sprintf("%d", env.Config.Jobs)

		return env.Runner.Run(ctx, checkout, "cmake", "--build", buildDir, "-j", jobs, "--target", "install")
	}
}

func artifactsStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		if env.DryRun {
			return nil
		}

		checkout := filepath.Join(env.Config.Staging, tool.Checkout)
		binDir := filepath.Join(env.Config.Prefix, "bin")

		for _, artifact := range tool.Artifacts {
			src := filepath.Join(checkout, buildDir, artifact)
			dest := filepath.Join(binDir, artifact)

			err := copyFile(src, dest)
			if err != nil {
				return err
			}

			log(ctx).Info().
				Str("step", "artifacts").
				Msgf("installed %s", dest)
		}

		return nil
	}
}

func hooksStep(tool *manifest.Tool) StepFunc {
	return func(ctx context.Context, env *Env) error {
		if tool.Hooks.Post == "" {
			return ErrSkipped
		}

		if env.DryRun {
			log(ctx).Info().
				Bool("command", true).
				Msg(tool.Hooks.Post)
			return nil
		}

		hookEnv := []string{
			"SEAHORSE_PREFIX=" + env.Config.Prefix,
			"SEAHORSE_STAGING=" + env.Config.Staging,
		}
		return RunHook(ctx, env.Config.Staging, tool.Hooks.Post, hookEnv)
	}
}

// copyFile replaces dest with a copy of src. The destination is truncated
// first, so a prior artifact is always overwritten.
func copyFile(src, dest string) error {
	srcHandle, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Could not open build output %s", src)
	}
	defer srcHandle.Close()

	info, err := srcHandle.Stat()
	if err != nil {
		return eris.Wrapf(err, "Failed to stat %s", src)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", dest)
	}
	defer destHandle.Close()

	_, err = io.Copy(destHandle, srcHandle)
	if err != nil {
		return eris.Wrapf(err, "Failed to copy %s to %s", src, dest)
	}

	err = destHandle.Close()
	if err != nil {
		return eris.Wrapf(err, "Failed to finish writing %s", dest)
	}

	return os.Chmod(dest, info.Mode()|0755)
}
