// Package attribution joins the page's posts with the ad account's ads by
// the creative story id and sums per-ad spend onto the originating post.
package attribution

import (
	"context"
	"encoding/json"

	"github.com/hellenic-development/fb-exporter/pkg/graph"
)

// SpendSource fetches the spend recorded against a single ad. Implemented
// by *graph.Client.
type SpendSource interface {
	InsightsSpend(ctx context.Context, adID, since, until string) (graph.SpendResult, error)
}

// sampleLimit bounds how many raw insights payloads the cache keeps for the
// debug artifact.
const sampleLimit = 10

// SpendCache memoizes per-ad spend across a run: at most one insights
// request is issued per ad id, and every later lookup is served from
// memory. The cache is owned by the run's single thread of control and is
// not safe for concurrent use.
type SpendCache struct {
	source SpendSource
	since  string
	until  string
	logger graph.Logger

	values  map[string]float64
	samples map[string]json.RawMessage
}

// NewSpendCache creates a cache for the given date range (YYYY-MM-DD).
func NewSpendCache(source SpendSource, since, until string, logger graph.Logger) *SpendCache {
	return &SpendCache{
		source:  source,
		since:   since,
		until:   until,
		logger:  logger,
		values:  make(map[string]float64),
		samples: make(map[string]json.RawMessage),
	}
}

// Get returns the spend for adID, fetching it on first use. A fetch that
// still fails after the client's retries degrades to 0.0 with a warning so
// one broken ad cannot sink the run; fatal token/permission errors are the
// exception and propagate so the caller aborts.
func (sc *SpendCache) Get(ctx context.Context, adID string) (float64, error) {
	if spend, ok := sc.values[adID]; ok {
		return spend, nil
	}

	result, err := sc.source.InsightsSpend(ctx, adID, sc.since, sc.until)
	if err != nil {
		if graph.IsFatal(err) {
			return 0, err
		}
		sc.warnf("insights failed for ad %s, using 0.0 spend: %v", adID, err)
		sc.values[adID] = 0
		return 0, nil
	}
	if !result.Wellformed {
		sc.warnf("malformed spend value for ad %s, using 0.0", adID)
	}

	sc.values[adID] = result.Amount
	if len(sc.samples) < sampleLimit {
		sc.samples[adID] = result.Payload
	}
	return result.Amount, nil
}

// Samples returns up to sampleLimit raw insights payloads collected during
// the run, keyed by ad id.
func (sc *SpendCache) Samples() map[string]json.RawMessage {
	return sc.samples
}

func (sc *SpendCache) warnf(format string, args ...any) {
	if sc.logger != nil {
		sc.logger.Warnf(format, args...)
	}
}
