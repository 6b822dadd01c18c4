// Command corvid runs the engine's text controller over stdin/stdout.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/corvidchess/corvid/corvid"
)

var (
	buildVersion = "(devel)"
)

var cli struct {
	Config  string  `help:"Path to a TOML config file." type:"path"`
	Weights string  `help:"Path to a weight file (unset uses the embedded placeholder)."`
	HashMB  int     `help:"Transposition table size in MB." default:"0"`
	MCTS    bool    `help:"Use the MCTS searcher instead of alpha-beta."`
	CPUCT   float64 `help:"MCTS exploration constant." default:"0"`
	Debug   bool    `help:"Raise the root logger to DEBUG."`
	Version bool    `help:"Print the version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("corvid"),
		kong.Description("A bitboard chess engine with alpha-beta and MCTS searchers."),
	)

	if cli.Version {
		fmt.Printf("corvid %s\n", buildVersion)
		return
	}

	cfg, err := corvid.LoadConfig(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cli.Weights != "" {
		cfg.WeightFile = cli.Weights
	}
	if cli.HashMB > 0 {
		cfg.HashMB = cli.HashMB
	}
	if cli.MCTS {
		cfg.Searcher = "mcts"
	}
	if cli.CPUCT > 0 {
		cfg.CPUCT = cli.CPUCT
	}
	if cli.Debug {
		cfg.LogLevel = "DEBUG"
	}

	corvid.InitLogging(cfg.LogLevel)

	ctrl, err := corvid.NewController(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := ctrl.Run(os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
