package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Prints the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("staging=%s\n", cfg.Staging)
		fmt.Printf("prefix=%s\n", cfg.Prefix)
		fmt.Printf("jobs=%d\n", cfg.Jobs)
		fmt.Printf("mode=%s\n", cfg.Mode)
		fmt.Printf("packages.installer=%s\n", cfg.Packages.Installer)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
