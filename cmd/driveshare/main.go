package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/driveshare/internal/app"
	"github.com/tildaslashalef/driveshare/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "driveshare",
		Usage: "Bulk folder sharing driven by a spreadsheet",
		Description: "Driveshare grants read permission on remote storage folders to the recipients " +
			"listed in a spreadsheet, matching recipients to folders by name.\n\n" +
			"The binary has no subcommands: invoked plain it performs a sharing run, while " +
			"--list-sheets and --status select the auxiliary inspection modes. Progress events " +
			"stream to stdout for a supervising process; interrupted runs resume from the " +
			"history file.",
		Version: Version,
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Flags: commands.Flags(),
		Before: func(c *cli.Context) error {
			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// Store the app instance in the context for later use
			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			if application, ok := c.App.Metadata["app"].(*app.App); ok {
				return application.Shutdown()
			}
			return nil
		},
		Action: commands.RootAction,
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
