package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
)

// spendSheetName is the workbook sheet holding the spend report.
const spendSheetName = "FB Post Spend"

// SpendRow is one line of the spend report.
type SpendRow struct {
	PostID       string
	Spend        float64
	AdIDs        []string
	Since        string
	Until        string
	GraphVersion string
}

// BuildSpendRows produces one row per post, ordered by publish time and
// then post id so re-runs over the same window are stable.
func BuildSpendRows(posts []graph.Post, mapping map[string][]string, spendByPost map[string]float64, since, until, graphVersion string) []SpendRow {
	sorted := make([]graph.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].PublishUnix(), sorted[j].PublishUnix()
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([]SpendRow, 0, len(sorted))
	for _, post := range sorted {
		if post.ID == "" {
			continue
		}
		rows = append(rows, SpendRow{
			PostID:       post.ID,
			Spend:        spendByPost[post.ID],
			AdIDs:        mapping[post.ID],
			Since:        since,
			Until:        until,
			GraphVersion: graphVersion,
		})
	}
	return rows
}

// WriteSpendXLSX writes the spend report workbook to path.
func WriteSpendXLSX(path string, rows []SpendRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", spendSheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{
		"Post ID",
		"Spent per post",
		"Ad IDs",
		"Ads matched",
		"Since",
		"Until",
		"Graph version",
	}
	if err := f.SetSheetRow(spendSheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cells := []any{
			row.PostID,
			row.Spend,
			strings.Join(row.AdIDs, ","),
			len(row.AdIDs),
			row.Since,
			row.Until,
			row.GraphVersion,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(spendSheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
