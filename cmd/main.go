package cmd

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bihealth/seahorse/pkg/config"
	"github.com/bihealth/seahorse/pkg/toolchain"
)

var rootCmd = &cobra.Command{
	Use:   "seahorse",
	Short: "Bootstraps the protobuf compiler toolchain",
	Long: `seahorse downloads, builds and installs the protobuf compiler toolchain
into a per-user prefix. It replaces the old install-protoc helper script with
a configurable, fail-fast pipeline.`,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("staging", "", "staging directory for checkouts and builds")
	flags.String("prefix", "", "installation prefix")
	flags.Int("jobs", 0, "parallel job count passed to the build tool")
	flags.String("manifest", "", "path to a tool manifest")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "output NDJSON instead of pretty console messages")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// loadConfig loads the configuration (defaults, then seahorse.toml, then
// SEAHORSE_* environment variables) and applies the overrides passed as
// flags on the given command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, loader := config.Loader()
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load configuration")
	}

	flags := cmd.Flags()
	if flags.Changed("staging") {
		cfg.Staging, _ = flags.GetString("staging")
	}
	if flags.Changed("prefix") {
		cfg.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("manifest") {
		cfg.Manifest, _ = flags.GetString("manifest")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "Invalid configuration")
	}

	return cfg, nil
}

// buildContext returns a context with a configured logger attached
func buildContext(cfg *config.Config) context.Context {
	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(NewConsoleWriter())
	}

	logger = logger.Level(cfg.LogLevel())
	return toolchain.WithLogger(context.Background(), &logger)
}
