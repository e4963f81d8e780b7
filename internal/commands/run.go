package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/driveshare/internal/app"
	"github.com/tildaslashalef/driveshare/internal/share"
	"github.com/tildaslashalef/driveshare/internal/utils"
)

// runAction executes a full sharing run: load the folder map and recipient
// cache, compute the pending recipients, grant read permission on each
// matched folder through the worker pool, and write status and log cells
// back to the document. Interrupted runs resume from the history file.
func runAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if w := c.Int("workers"); w > 0 {
		application.Config.Engine.WorkerCount = w
	}
	if c.Bool("rich") {
		application.Config.Engine.RichOutput = true
	}

	// SIGINT and SIGTERM take the clean shutdown path: the engine saves
	// history and returns ErrInterrupted.
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := application.Share.Run(ctx)
	switch {
	case errors.Is(err, share.ErrInterrupted):
		utils.PrintWarning("Run interrupted; progress saved, rerun to resume")
		return nil
	case err != nil:
		utils.PrintError(fmt.Sprintf("Run failed: %s", err))
		return err
	}

	utils.PrintSuccess(fmt.Sprintf("Run complete: %d processed, %d successful, %d failed, %d errors",
		report.Statistics.TotalProcessed,
		report.Statistics.SuccessfulShares,
		report.Statistics.FailedShares,
		report.Statistics.ErrorCount,
	))

	if application.Config.Engine.RichOutput {
		renderIssueTable(report)
	}

	return nil
}

// renderIssueTable prints failed and unmatched recipients after the run.
// Opt-in only: headless consumers read the event stream instead.
func renderIssueTable(report *share.ResultsReport) {
	if len(report.FailedResults) == 0 {
		utils.PrintInfo("No issues to report")
		return
	}

	utils.PrintHeading("Issues")
	t := utils.NewTable(table.Row{"Row", "Name", "Email", "Issue", "Detail"})
	for _, r := range report.FailedResults {
		issue := r.IssueType
		if issue == "" {
			issue = r.ErrorCode
		}
		t.AppendRow(table.Row{r.Recipient.Row, r.Recipient.Name, r.Recipient.Email, issue, r.Error})
	}
	t.Render()
}
