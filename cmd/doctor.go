package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bihealth/seahorse/pkg"
	"github.com/bihealth/seahorse/pkg/manifest"
	"github.com/bihealth/seahorse/pkg/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Checks the environment the installation pipeline depends on",
	Long: `Verifies that the external tools the pipeline shells out to (git, cmake,
make, a C++ compiler) are available, reports their versions and checks
whether the install prefix is on your PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx := buildContext(cfg)
		runner := toolchain.NewRunner()

		pkg.PrintTask("Checking external tools")
		missing := 0
		for _, check := range toolchain.RequiredTools() {
			result := toolchain.CheckTool(ctx, runner, check)
			switch {
			case result.Err != nil && check.Optional:
				pkg.PrintSubtask(fmt.Sprintf("%s: not found (optional)", check.Name))
			case result.Err != nil:
				pkg.PrintError(fmt.Sprintf("%s: not found", check.Name))
				missing++
			case result.Version == "":
				pkg.PrintSubtask(fmt.Sprintf("%s: %s", check.Name, result.Path))
			default:
				pkg.PrintSubtask(fmt.Sprintf("%s: %s (%s)", check.Name, result.Version, result.Path))
			}
		}

		mf, err := manifest.Load(cfg.Manifest)
		if err != nil {
			return err
		}

		env := toolchain.NewEnv(cfg, runner)

		pkg.PrintTask("Checking installed tools")
		names := make([]string, 0, len(mf.Tools))
		for name := range mf.Tools {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			tool, err := mf.Tool(name)
			if err != nil {
				return err
			}

			satisfied, err := toolchain.InstalledSatisfies(ctx, env, name, tool)
			if err != nil {
				return err
			}

			if satisfied {
				pkg.PrintSubtask(fmt.Sprintf("%s: installed", name))
			} else {
				pkg.PrintSubtask(fmt.Sprintf("%s: not installed (run seahorse install %s)", name, name))
			}
		}

		binDir := filepath.Join(cfg.Prefix, "bin")
		if !pkg.OnPath(os.Getenv("PATH"), binDir) {
			pkg.PrintError(fmt.Sprintf("%s is not on your PATH", binDir))
		}

		if missing > 0 {
			return eris.Errorf("%d required tools are missing", missing)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
