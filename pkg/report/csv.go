// Package report serializes export results: the engagement CSV, the spend
// XLSX workbook, and the optional debug JSON artifact. Writers only ever
// see core outputs; the access token never reaches this package.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
	"github.com/hellenic-development/fb-exporter/pkg/insights"
)

// EngagementColumns is the engagement CSV header, fixed so downstream
// sheets can rely on column positions across runs.
var EngagementColumns = []string{
	"Post ID",
	"Page name",
	"Title",
	"Publish time",
	"Permalink",
	"Post type",
	"Reach",
	"Reach (Organic)",
	"Reach (Paid/Boosted)",
	"Impressions",
	"Impressions (Unique)",
	"Impressions (Organic)",
	"Impressions (Paid/Boosted)",
	"Engaged users",
	"Reactions (Total)",
	"Reactions (like)",
	"Reactions (love)",
	"Reactions (wow)",
	"Reactions (haha)",
	"Reactions (sad)",
	"Reactions (angry)",
	"Comments",
	"Shares",
	"Total clicks",
	"Link Clicks",
	"Other Clicks",
	"Negative feedback",
	"Negative feedback (Unique)",
	"3-second video views",
	"1-minute video views",
	"Seconds viewed (video view time)",
	"Average seconds viewed (video avg time watched)",
	"3s_views_M_18_24",
	"3s_views_M_25_34",
	"3s_views_M_35_44",
	"3s_views_M_45_54",
	"3s_views_M_55_64",
	"3s_views_M_65_plus",
	"3s_views_F_18_24",
	"3s_views_F_25_34",
	"3s_views_F_35_44",
	"3s_views_F_45_54",
	"3s_views_F_55_64",
	"3s_views_F_65_plus",
}

// EngagementRow flattens one post and its metrics into CSV cell order.
func EngagementRow(post graph.Post, m insights.PostMetrics, pageName string) []string {
	row := []string{
		post.ID,
		pageName,
		post.Title(),
		post.CreatedTime,
		post.PermalinkURL,
		post.PostType(),
		formatCount(m.Reach),
		formatCount(m.ReachOrganic),
		formatCount(m.ReachPaid),
		formatCount(m.Impressions),
		formatCount(m.ImpressionsUnique),
		formatCount(m.ImpressionsOrganic),
		formatCount(m.ImpressionsPaid),
		formatCount(m.EngagedUsers),
		formatCount(m.ReactionsTotal),
		formatCount(m.ReactionsByType["like"]),
		formatCount(m.ReactionsByType["love"]),
		formatCount(m.ReactionsByType["wow"]),
		formatCount(m.ReactionsByType["haha"]),
		formatCount(m.ReactionsByType["sad"]),
		formatCount(m.ReactionsByType["angry"]),
		formatCount(m.Comments),
		formatCount(m.Shares),
		formatCount(m.TotalClicks),
		formatCount(m.LinkClicks),
		formatCount(m.OtherClicks),
		formatCount(m.NegativeFeedback),
		formatCount(m.NegativeFeedbackUnique),
		formatCount(m.VideoViews3s),
		formatCount(m.VideoViews1m),
		formatCount(m.VideoViewTime),
		formatCount(m.VideoAvgTimeWatched),
	}
	for _, bucket := range insights.DemographicBuckets {
		row = append(row, formatCount(m.VideoViews3sByDemographic[bucket]))
	}
	return row
}

// WriteEngagementCSV writes the header and rows to path, overwriting any
// existing file.
func WriteEngagementCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(EngagementColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func formatCount(v int64) string {
	return strconv.FormatInt(v, 10)
}
