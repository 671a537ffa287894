package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bihealth/seahorse/pkg"
	"github.com/bihealth/seahorse/pkg/manifest"
	"github.com/bihealth/seahorse/pkg/toolchain"
)

var installCmd = &cobra.Command{
	Use:   "install [tool]",
	Short: "Downloads, builds and installs a toolchain",
	Long: `Runs the installation pipeline for the given tool (default: protoc):
system packages, source checkout, submodules, CMake configure, parallel build
and artifact installation into the prefix. The pipeline halts on the first
failing step. An existing checkout is reused as-is; pass --clean to start
over from scratch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		dry, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		clean, err := cmd.Flags().GetBool("clean")
		if err != nil {
			return err
		}
		if clean {
			cfg.Mode = "clean"
		}

		prebuilt, err := cmd.Flags().GetBool("prebuilt")
		if err != nil {
			return err
		}

		ctx := buildContext(cfg)

		mf, err := manifest.Load(cfg.Manifest)
		if err != nil {
			return err
		}

		name := "protoc"
		if len(args) > 0 {
			name = args[0]
		}

		tool, err := mf.Tool(name)
		if err != nil {
			return err
		}

		runner := toolchain.NewRunner()
		if dry {
			runner = toolchain.NewDryRunner()
		}

		env := toolchain.NewEnv(cfg, runner)
		env.DryRun = dry

		pkg.PrintTask(fmt.Sprintf("Installing %s", name))

		if !force && !dry && cfg.Mode != "clean" {
			// only a pinned minVersion can short-circuit the run; a plain
			// install always rebuilds and overwrites the artifacts
			satisfied, err := toolchain.UpToDate(ctx, env, name, tool)
			if err != nil {
				return err
			}

			if satisfied {
				pkg.PrintSubtask(fmt.Sprintf("%s %s or newer is already installed; pass --force to rebuild", name, tool.MinVersion))
				return nil
			}
		}

		steps := make([]toolchain.Step, 0)
		if cfg.Mode == "clean" {
			steps = append(steps, toolchain.CleanStep())
		}

		if prebuilt {
			entry, ok := tool.PrebuiltFor(runtime.GOOS, runtime.GOARCH)
			if !ok {
				return eris.Errorf("Tool %s has no prebuilt archive for %s-%s", name, runtime.GOOS, runtime.GOARCH)
			}

			steps = append(steps, toolchain.PrebuiltSteps(name, tool, mf, entry)...)
		} else {
			steps = append(steps, toolchain.SourceSteps(name, tool)...)
		}

		if cfg.Packages.BestEffort {
			for idx := range steps {
				if steps[idx].Name == "packages" {
					steps[idx].BestEffort = true
				}
			}
		}

		report, err := toolchain.RunSteps(ctx, env, steps)
		if err != nil {
			return err
		}

		for _, step := range report.BestEffortFailures {
			pkg.PrintError(fmt.Sprintf("Step %s failed (best-effort)", step))
		}

		binDir := filepath.Join(cfg.Prefix, "bin")
		if !pkg.OnPath(os.Getenv("PATH"), binDir) {
			pkg.PrintSubtask(fmt.Sprintf("Add %s to your PATH to use the installed tools", binDir))
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	installCmd.Flags().BoolP("force", "f", false, "run the pipeline even if the tool is already installed")
	installCmd.Flags().Bool("clean", false, "remove the staging directory before starting")
	installCmd.Flags().Bool("prebuilt", false, "download a release archive instead of building from source")
}
