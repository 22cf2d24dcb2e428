// Package insights discovers which post-engagement metrics the Graph API
// still supports and fetches them per post. Meta deprecates insights
// metrics across Graph versions, so the candidate list is probed once per
// run and unsupported metrics are skipped instead of failing the export.
package insights

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
)

// invalidMetricCode is the Graph error for an unknown or deprecated metric.
const invalidMetricCode = 100

// MetricCandidates is every metric the exporter knows how to place in a
// report row, in probe order.
var MetricCandidates = []string{
	"post_impressions",
	"post_impressions_unique",
	"post_impressions_organic",
	"post_impressions_paid",
	"post_reach",
	"post_reach_organic",
	"post_reach_paid",
	"post_media_view", // replaces post_impressions on some pages
	"post_engaged_users",
	"post_clicks",
	"post_clicks_unique",
	"post_clicks_by_type",
	"post_reactions_by_type_total",
	"post_comments",
	"post_shares",
	"post_negative_feedback",
	"post_negative_feedback_unique",
	"post_video_views_3s",
	"post_video_views_1m",
	"post_video_view_time",
	"post_video_avg_time_watched",
	"post_video_views_3s_by_age_bucket_and_gender",
}

// DemographicBuckets are the age/gender keys of the 3-second video view
// breakdown, in report column order.
var DemographicBuckets = []string{
	"M.18-24", "M.25-34", "M.35-44", "M.45-54", "M.55-64", "M.65+",
	"F.18-24", "F.25-34", "F.35-44", "F.45-54", "F.55-64", "F.65+",
}

type metricValue struct {
	Value any `json:"value"`
}

type metricItem struct {
	Name   string        `json:"name"`
	Values []metricValue `json:"values"`
}

type metricsEnvelope struct {
	Data []metricItem `json:"data"`
}

// PostMetrics is one post's engagement row. Absent metrics stay zero.
type PostMetrics struct {
	Impressions        int64
	ImpressionsUnique  int64
	ImpressionsOrganic int64
	ImpressionsPaid    int64

	Reach        int64
	ReachOrganic int64
	ReachPaid    int64

	EngagedUsers int64

	ReactionsTotal  int64
	ReactionsByType map[string]int64 // like, love, wow, haha, sad, angry

	Comments int64
	Shares   int64

	TotalClicks int64
	LinkClicks  int64
	OtherClicks int64

	NegativeFeedback       int64
	NegativeFeedbackUnique int64

	VideoViews3s        int64
	VideoViews1m        int64
	VideoViewTime       int64
	VideoAvgTimeWatched int64

	// Keyed by DemographicBuckets entries.
	VideoViews3sByDemographic map[string]int64
}

// ResolveValidMetrics probes every candidate metric individually against a
// sample post and returns the supported subset, preserving candidate order.
// Graph rejects an unknown metric with code 100, which simply skips it;
// fatal errors propagate and abort the run.
func ResolveValidMetrics(ctx context.Context, c *graph.Client, samplePostID string, logger graph.Logger) ([]string, error) {
	endpoint := c.Endpoint(samplePostID, "insights")
	var valid []string

	for _, metric := range MetricCandidates {
		params := url.Values{}
		params.Set("metric", metric)
		params.Set("period", "lifetime")

		err := c.Get(ctx, endpoint, params, nil)
		if err == nil {
			valid = append(valid, metric)
			continue
		}
		if graph.ErrorCode(err) == invalidMetricCode {
			if logger != nil {
				logger.Infof("metric unsupported or deprecated, skipping: %s", metric)
			}
			continue
		}
		return nil, fmt.Errorf("probe metric %s: %w", metric, err)
	}

	return valid, nil
}

// FetchPostMetrics fetches the validated metrics for one post and parses
// them into a flat row. An empty metrics list yields a zero row without a
// request.
func FetchPostMetrics(ctx context.Context, c *graph.Client, postID string, metrics []string) (PostMetrics, error) {
	if len(metrics) == 0 {
		return PostMetrics{}, nil
	}

	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))
	params.Set("period", "lifetime")

	var envelope metricsEnvelope
	if err := c.Get(ctx, c.Endpoint(postID, "insights"), params, &envelope); err != nil {
		return PostMetrics{}, fmt.Errorf("fetch insights for post %s: %w", postID, err)
	}
	return parseMetrics(envelope), nil
}

// parseMetrics flattens the insights envelope. Values arrive as numbers for
// plain metrics and objects for breakdowns; both are handled defensively so
// one odd value never fails a row.
func parseMetrics(envelope metricsEnvelope) PostMetrics {
	values := make(map[string]any, len(envelope.Data))
	for _, item := range envelope.Data {
		if item.Name == "" || len(item.Values) == 0 {
			continue
		}
		values[item.Name] = item.Values[0].Value
	}

	var m PostMetrics

	m.Impressions = intValue(values["post_impressions"])
	if m.Impressions == 0 {
		m.Impressions = intValue(values["post_media_view"])
	}
	m.ImpressionsUnique = intValue(values["post_impressions_unique"])
	m.ImpressionsOrganic = intValue(values["post_impressions_organic"])
	m.ImpressionsPaid = intValue(values["post_impressions_paid"])
	m.Reach = intValue(values["post_reach"])
	m.ReachOrganic = intValue(values["post_reach_organic"])
	m.ReachPaid = intValue(values["post_reach_paid"])
	m.EngagedUsers = intValue(values["post_engaged_users"])
	m.Comments = intValue(values["post_comments"])
	m.Shares = intValue(values["post_shares"])
	m.NegativeFeedback = intValue(values["post_negative_feedback"])
	m.NegativeFeedbackUnique = intValue(values["post_negative_feedback_unique"])
	m.VideoViews3s = intValue(values["post_video_views_3s"])
	m.VideoViews1m = intValue(values["post_video_views_1m"])
	m.VideoViewTime = intValue(values["post_video_view_time"])
	m.VideoAvgTimeWatched = intValue(values["post_video_avg_time_watched"])

	if reactions := mapValue(values["post_reactions_by_type_total"]); reactions != nil {
		m.ReactionsByType = reactions
		for _, count := range reactions {
			m.ReactionsTotal += count
		}
	}

	m.TotalClicks = intValue(values["post_clicks"])
	if breakdown := mapValue(values["post_clicks_by_type"]); breakdown != nil {
		link, ok := breakdown["link clicks"]
		if !ok {
			link = breakdown["link_clicks"]
		}
		m.LinkClicks = link

		var breakdownTotal int64
		for _, count := range breakdown {
			breakdownTotal += count
		}
		if other := breakdownTotal - link; other > 0 {
			m.OtherClicks = other
		}
		if m.TotalClicks == 0 {
			m.TotalClicks = breakdownTotal
		}
	}

	if buckets := mapValue(values["post_video_views_3s_by_age_bucket_and_gender"]); buckets != nil {
		m.VideoViews3sByDemographic = make(map[string]int64, len(DemographicBuckets))
		for _, bucket := range DemographicBuckets {
			m.VideoViews3sByDemographic[bucket] = buckets[bucket]
		}
	}

	return m
}

// intValue coerces a metric value that should be numeric. JSON numbers
// decode as float64; anything else counts as zero.
func intValue(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

// mapValue coerces a breakdown value ({"like": 3, ...}) into an int64 map,
// or nil when the value is not an object.
func mapValue(v any) map[string]int64 {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(obj))
	for key, raw := range obj {
		out[key] = intValue(raw)
	}
	return out
}
