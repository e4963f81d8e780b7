package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/driveshare/internal/app"
	"github.com/tildaslashalef/driveshare/internal/utils"
)

// statusAction reports whether an interrupted run left a history snapshot
// behind, and summarizes it
func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	snap := application.Share.Status()
	if snap == nil {
		utils.PrintInfo("No pending run; history file absent")
		return nil
	}

	utils.PrintHeading("Pending run")
	utils.PrintKeyValue("History file", color.YellowString("%s", application.Config.Engine.HistoryFile))
	utils.PrintKeyValue("Saved", snap.Timestamp.Format(time.RFC3339))
	utils.PrintKeyValue("Age", time.Since(snap.Timestamp).Round(time.Second).String())
	utils.PrintKeyValue("Processed keys", fmt.Sprintf("%d", len(snap.ProcessedParticipants)))
	utils.PrintKeyValue("Pending cell updates", fmt.Sprintf("%d", len(snap.BatchUpdates)))
	utils.PrintKeyValue("Counters", fmt.Sprintf("%d/%d processed, %d successful, %d failed, %d errors",
		snap.ProgressStats.Processed,
		snap.ProgressStats.Total,
		snap.ProgressStats.Successful,
		snap.ProgressStats.Failed,
		snap.ProgressStats.Errors,
	))
	utils.PrintInfo("Rerun the tool to resume this work")

	return nil
}
