package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/driveshare/internal/app"
	"github.com/tildaslashalef/driveshare/internal/utils"
)

// sheetsAction fetches the configured spreadsheet's metadata and prints each
// sheet title and id
func sheetsAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	sheets, err := application.Share.Sheets(c.Context)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to list sheets: %s", err))
		return err
	}

	utils.PrintHeading(fmt.Sprintf("Sheets in %s", application.Config.Spreadsheet.ID))
	t := utils.NewTable(table.Row{"Title", "Sheet ID"})
	for _, s := range sheets {
		t.AppendRow(table.Row{s.Title, s.SheetID})
	}
	t.Render()

	return nil
}
