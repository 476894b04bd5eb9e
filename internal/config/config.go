// Package config loads cwlviz settings from defaults, an optional
// cwlviz.yaml file, CWLVIZ_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/me/cwlviz/internal/logging"
)

// EnvPrefix is the prefix of environment overrides (CWLVIZ_LOG_LEVEL, ...).
const EnvPrefix = "CWLVIZ"

// Config is the complete cwlviz configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Render RenderConfig `mapstructure:"render"`
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// RenderConfig holds the graph generation defaults.
type RenderConfig struct {
	RankDir   string `mapstructure:"rankdir"`    // Graphviz rankdir: LR, TB, RL, BT
	FileNodes bool   `mapstructure:"file_nodes"` // draw file-literal ports as nodes
}

// ServerConfig holds configuration for the render server.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`    // Listen address (default ":8080")
	DBPath string `mapstructure:"db_path"` // SQLite database path (":memory:" for testing)
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Render: RenderConfig{RankDir: "LR"},
		Server: ServerConfig{Addr: ":8080", DBPath: DefaultDBPath()},
	}
}

// DefaultDBPath returns ~/.cwlviz/graphs.db, or a relative path when the
// home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cwlviz", "graphs.db")
	}
	return filepath.Join(home, ".cwlviz", "graphs.db")
}

// Load builds a Config. configFile names an explicit file; when empty,
// cwlviz.yaml is looked up in the working directory and in
// ~/.config/cwlviz, and a missing file is not an error. Flags that were
// set on the command line win over every other source.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cwlviz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cwlviz"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"rankdir":    "render.rankdir",
	"file-nodes": "render.file_nodes",
	"addr":       "server.addr",
	"db":         "server.db_path",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("render.rankdir", d.Render.RankDir)
	v.SetDefault("render.file_nodes", d.Render.FileNodes)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", d.Server.DBPath)
}

var rankDirs = map[string]bool{"LR": true, "RL": true, "TB": true, "BT": true}

// ValidRankDir reports whether s is a Graphviz rankdir value.
func ValidRankDir(s string) bool {
	return rankDirs[strings.ToUpper(s)]
}

// Validate rejects values the rest of the program cannot use.
func (c Config) Validate() error {
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if !ValidRankDir(c.Render.RankDir) {
		return fmt.Errorf("invalid rankdir %q: want LR, RL, TB or BT", c.Render.RankDir)
	}
	return nil
}
