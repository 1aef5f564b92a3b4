package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/idilsaglam/tada/internal/cli"
	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	fs := flag.NewFlagSet("tada", flag.ContinueOnError)
	fs.Usage = cli.PrintHelp
	cfg, err := config.Load(fs, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		ui.Fail(err.Error())
		os.Exit(2)
	}

	// Hand the remaining args to the CLI runner.
	code := cli.Run(cfg, fs.Args(), cli.Options{})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
