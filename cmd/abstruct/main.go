package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "abstruct",
		Usage:  "Decode, inspect and re-encode binary files from declarative schemas",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (.yaml or .toml)",
			},
			&cli.StringSliceFlag{
				Name:  "schema-dir",
				Usage: "directory of YAML schema declarations",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log decoding progress to stderr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			formatsCmd(),
			inspectCmd(),
			layoutCmd(),
			repackCmd(),
		},
	}
}
