package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bihealth/seahorse/pkg"
	"github.com/bihealth/seahorse/pkg/manifest"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [tool]",
	Short: "Removes the staging directory",
	Long: `Removes the staging directory with all source checkouts and build trees.
With a tool argument only that tool's checkout is removed. The install
prefix is left alone either way.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		target := cfg.Staging
		if len(args) > 0 {
			mf, err := manifest.Load(cfg.Manifest)
			if err != nil {
				return err
			}

			tool, err := mf.Tool(args[0])
			if err != nil {
				return err
			}

			target = filepath.Join(cfg.Staging, tool.Checkout)
		}

		pkg.PrintTask(fmt.Sprintf("Removing %s", target))
		err = os.RemoveAll(target)
		if err != nil {
			return eris.Wrapf(err, "Failed to remove %s", target)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
