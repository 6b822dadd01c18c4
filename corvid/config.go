// Package corvid implements the engine's text controller protocol: a
// command loop that parses UCI-style commands, drives either searcher
// over a shared Position, and reports progress and results.
package corvid

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config holds the defaults an optional TOML file supplies for engine
// construction. setoption and CLI flags always take precedence over
// whatever a config file loaded.
type Config struct {
	HashMB     int     `toml:"hash_mb"`
	WeightFile string  `toml:"weight_file"`
	CPUCT      float64 `toml:"cpuct"`
	Searcher   string  `toml:"searcher"` // "alphabeta" or "mcts"
	LogLevel   string  `toml:"log_level"`
}

// DefaultConfig returns the engine's built-in defaults, used when no
// config file is given and no setoption overrides them.
func DefaultConfig() Config {
	return Config{
		HashMB:     64,
		WeightFile: "",
		CPUCT:      1.4,
		Searcher:   "alphabeta",
		LogLevel:   "INFO",
	}
}

// LoadConfig reads a TOML config file on top of DefaultConfig. An empty
// path is a no-op.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, errors.Wrapf(err, "corvid: config file %s", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "corvid: parse config file %s", path)
	}
	return cfg, nil
}
