package attribution

import (
	"context"
	"math"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
)

// Stats summarizes an attribution run for the diagnostic artifact.
type Stats struct {
	PostsFetched   int `json:"posts_fetched"`
	AdsScanned     int `json:"ads_scanned"`
	AdsWithStoryID int `json:"ads_with_story_id"`
	PostsMatched   int `json:"posts_matched_to_ads"`
}

// SpendLookup resolves per-ad spend. Implemented by *SpendCache.
type SpendLookup interface {
	Get(ctx context.Context, adID string) (float64, error)
}

// BuildMapping groups ads by the post their creative promotes, in ad
// listing order. An ad without a story id, or whose story id is not a known
// post, is silently dropped: that is a filter, not an error. stats may be
// nil.
func BuildMapping(posts []graph.Post, ads []graph.Ad, stats *Stats) map[string][]string {
	if stats != nil {
		stats.PostsFetched = len(posts)
	}

	postIDs := make(map[string]bool, len(posts))
	for _, p := range posts {
		if p.ID != "" {
			postIDs[p.ID] = true
		}
	}

	mapping := make(map[string][]string)
	for _, ad := range ads {
		if stats != nil {
			stats.AdsScanned++
		}
		if ad.ID == "" {
			continue
		}
		storyID := ad.StoryID()
		if storyID == "" {
			continue
		}
		if stats != nil {
			stats.AdsWithStoryID++
		}
		if postIDs[storyID] {
			mapping[storyID] = append(mapping[storyID], ad.ID)
		}
	}

	if stats != nil {
		stats.PostsMatched = len(mapping)
	}
	return mapping
}

// Attribute sums the spend of every ad mapped to a post onto that post.
// The result has exactly one entry per input post id; posts with no mapped
// ads get 0.0. Totals are rounded to two decimals.
func Attribute(ctx context.Context, posts []graph.Post, mapping map[string][]string, lookup SpendLookup) (map[string]float64, error) {
	spendByPost := make(map[string]float64, len(posts))
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		var total float64
		for _, adID := range mapping[p.ID] {
			spend, err := lookup.Get(ctx, adID)
			if err != nil {
				return nil, err
			}
			total += spend
		}
		spendByPost[p.ID] = RoundSpend(total)
	}
	return spendByPost, nil
}

// UniqueAdIDs returns every mapped ad id exactly once, in first-seen order
// over the posts' mapping. Used to warm the spend cache before attribution.
func UniqueAdIDs(mapping map[string][]string, posts []graph.Post) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range posts {
		for _, adID := range mapping[p.ID] {
			if !seen[adID] {
				seen[adID] = true
				ids = append(ids, adID)
			}
		}
	}
	return ids
}

// RoundSpend rounds a monetary total to two decimals, half away from zero
// (math.Round semantics: 0.125 -> 0.13, -0.125 -> -0.13).
func RoundSpend(v float64) float64 {
	return math.Round(v*100) / 100
}
