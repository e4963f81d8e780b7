// Package commands implements the actions behind the single driveshare
// executable. There are no subcommands: the binary performs a sharing run by
// default, and the auxiliary inspection modes are selected with flags.
package commands

import (
	"github.com/urfave/cli/v2"
)

// Flags returns the flag set of the executable
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Override the worker pool size",
		},
		&cli.BoolFlag{
			Name:  "rich",
			Usage: "Render the post-run issue table",
		},
		&cli.BoolFlag{
			Name:  "list-sheets",
			Usage: "List the document's sheet tabs and exit without running",
		},
		&cli.BoolFlag{
			Name:  "status",
			Usage: "Report pending resume state and exit without running",
		},
	}
}

// RootAction dispatches the selected mode: one of the inspection flags, or
// the default sharing run.
func RootAction(c *cli.Context) error {
	switch {
	case c.Bool("list-sheets"):
		return sheetsAction(c)
	case c.Bool("status"):
		return statusAction(c)
	default:
		return runAction(c)
	}
}
