package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	Staging  string `default:"utils/var" usage:"Scratch directory used for source checkouts and builds"`
	Prefix   string `usage:"Installation prefix (defaults to ~/.local/share/seahorse)"`
	Jobs     int    `default:"8" usage:"Parallel job count passed to the build tool"`
	Mode     string `default:"resume" usage:"resume reuses existing staging state, clean starts from scratch"`
	Manifest string `usage:"Path to a tool manifest (defaults to the embedded manifest)"`
	Packages struct {
		Installer  string `default:"apt-get" usage:"System package installer (apt-get or none)"`
		BestEffort bool   `default:"false" usage:"Keep going even if package installation fails"`
	}
	Log struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output NDJSON instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object
func Loader() (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SEAHORSE",
		SkipFlags: true,
		Files:     []string{"seahorse.toml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// ApplyDefaults fills the fields that can't have a static default value.
func (cfg *Config) ApplyDefaults() error {
	if cfg.Prefix == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return eris.Wrap(err, "Failed to determine the user's home directory")
		}

		cfg.Prefix = filepath.Join(home, ".local", "share", "seahorse")
	}

	return nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	switch cfg.Mode {
	case "resume":
	case "clean":
		// valid
	default:
		return eris.Errorf(`Invalid value for mode: %s (must be resume or clean)`, cfg.Mode)
	}

	switch cfg.Packages.Installer {
	case "apt-get":
	case "none":
		// valid
	default:
		return eris.Errorf(`Invalid value for packages.installer: %s (must be apt-get or none)`, cfg.Packages.Installer)
	}

	if cfg.Jobs < 1 {
		return eris.Errorf(`Invalid value for jobs: %d (must be at least 1)`, cfg.Jobs)
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
