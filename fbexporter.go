package fbexporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hellenic-development/fb-exporter/pkg/attribution"
	"github.com/hellenic-development/fb-exporter/pkg/config"
	"github.com/hellenic-development/fb-exporter/pkg/graph"
	"github.com/hellenic-development/fb-exporter/pkg/insights"
	"github.com/hellenic-development/fb-exporter/pkg/report"
)

// Logger receives progress messages. A nil Logger means silent operation.
type Logger = graph.Logger

// ErrMissingToken is returned when no access token was provided. Treated
// like a fatal Graph auth error: the run never starts.
var ErrMissingToken = errors.New("access token missing: set FB_PAGE_ACCESS_TOKEN or pass --token")

// Options configures an export run.
type Options struct {
	AccessToken  string
	PageID       string
	AdAccountID  string // "123" or "act_123"; empty means no ad account
	GraphVersion string
	Since        string // YYYY-MM-DD, inclusive
	Until        string // YYYY-MM-DD, inclusive

	// DryRunLimit > 0 stops the posts listing after that many posts and
	// skips all per-post work.
	DryRunLimit int

	// Request tunes the client's resilience policy; zero values use the
	// client defaults.
	Request config.RequestConfig

	Logger Logger
}

// SpendResult is the output of the spend-attribution pipeline.
type SpendResult struct {
	Posts       []graph.Post
	SpendByPost map[string]float64
	Mapping     map[string][]string
	Stats       attribution.Stats
	Rows        []report.SpendRow

	// SampleSpend holds up to ten raw insights payloads for the debug
	// artifact.
	SampleSpend map[string]json.RawMessage
}

// EngagementResult is the output of the engagement-insights pipeline.
type EngagementResult struct {
	PageName     string
	Posts        []graph.Post
	ValidMetrics []string
	Metrics      map[string]insights.PostMetrics
	Rows         [][]string
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.AccessToken) == "" || o.AccessToken == "<ACCESS_TOKEN>" {
		return ErrMissingToken
	}
	if o.PageID == "" {
		return errors.New("page id is required")
	}
	if _, err := ParseDate(o.Since); err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	if _, err := ParseDate(o.Until); err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}
	return nil
}

func (o *Options) newClient() *graph.Client {
	return graph.NewClient(graph.Config{
		AccessToken: o.AccessToken,
		Version:     o.GraphVersion,
		Timeout:     o.Request.Timeout.Std(),
		MaxRetries:  o.Request.MaxRetries,
		BaseBackoff: o.Request.BaseBackoff.Std(),
		MaxBackoff:  o.Request.MaxBackoff.Std(),
		Throttle:    o.Request.Throttle.Std(),
		Logger:      o.Logger,
	})
}

func (o *Options) logInfo(f string, a ...any) {
	if o.Logger != nil {
		o.Logger.Infof(f, a...)
	}
}

func (o *Options) logWarn(f string, a ...any) {
	if o.Logger != nil {
		o.Logger.Warnf(f, a...)
	}
}

// RunSpend executes the spend-attribution pipeline: list posts, list the ad
// account's ads, attribute each ad to the post its creative promotes, and
// sum per-ad spend onto the posts. An empty or placeholder ad account id
// degrades to a report where every post has 0.0 spend.
func RunSpend(ctx context.Context, opts Options) (*SpendResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	accountID, err := NormalizeAdAccountID(opts.AdAccountID)
	if err != nil {
		return nil, err
	}

	client := opts.newClient()
	sinceUnix, _ := ParseDate(opts.Since)
	untilUnix, _ := ParseDate(opts.Until)

	opts.logInfo("Fetching posts for page %s (%s .. %s)...", opts.PageID, opts.Since, opts.Until)
	posts, err := client.FetchPosts(ctx, opts.PageID, graph.SpendPostFields, sinceUnix, untilUnix, opts.DryRunLimit)
	if err != nil {
		return nil, err
	}
	opts.logInfo("Fetched %d posts", len(posts))

	result := &SpendResult{
		Posts:       posts,
		Mapping:     map[string][]string{},
		SampleSpend: map[string]json.RawMessage{},
	}
	result.Stats.PostsFetched = len(posts)

	if accountID == "" {
		opts.logWarn("Ad account id missing; all posts will have 0.0 spend.")
		result.SpendByPost = make(map[string]float64, len(posts))
		for _, p := range posts {
			if p.ID != "" {
				result.SpendByPost[p.ID] = 0
			}
		}
	} else {
		opts.logInfo("Fetching ads for account act_%s...", accountID)
		ads, err := client.FetchAds(ctx, accountID)
		if err != nil {
			return nil, err
		}

		result.Mapping = attribution.BuildMapping(posts, ads, &result.Stats)
		opts.logInfo("Scanned %d ads, matched %d posts", result.Stats.AdsScanned, result.Stats.PostsMatched)

		cache := attribution.NewSpendCache(client, opts.Since, opts.Until, opts.Logger)
		adIDs := attribution.UniqueAdIDs(result.Mapping, posts)
		opts.logInfo("Fetching spend for %d ads...", len(adIDs))
		for _, adID := range adIDs {
			if _, err := cache.Get(ctx, adID); err != nil {
				return nil, err
			}
		}

		result.SpendByPost, err = attribution.Attribute(ctx, posts, result.Mapping, cache)
		if err != nil {
			return nil, err
		}
		result.SampleSpend = cache.Samples()
	}

	result.Rows = report.BuildSpendRows(posts, result.Mapping, result.SpendByPost, opts.Since, opts.Until, client.Version())
	return result, nil
}

// RunEngagement executes the engagement-insights pipeline: resolve the page
// name, list posts with the full field ladder, discover which metrics this
// page still supports, and fetch a metrics row per post. A post whose
// insights fetch fails non-fatally gets a zeroed row with a warning.
func RunEngagement(ctx context.Context, opts Options) (*EngagementResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	client := opts.newClient()
	sinceUnix, _ := ParseDate(opts.Since)
	untilUnix, _ := ParseDate(opts.Until)

	opts.logInfo("Resolving page name...")
	pageName, err := client.FetchPageName(ctx, opts.PageID)
	if err != nil {
		return nil, err
	}
	opts.logInfo("Page: %s", pageName)

	opts.logInfo("Fetching posts for page %s (%s .. %s)...", opts.PageID, opts.Since, opts.Until)
	posts, err := client.FetchPostsWithFallback(ctx, opts.PageID, sinceUnix, untilUnix, opts.DryRunLimit)
	if err != nil {
		return nil, err
	}
	opts.logInfo("Fetched %d posts", len(posts))

	result := &EngagementResult{
		PageName: pageName,
		Posts:    posts,
		Metrics:  make(map[string]insights.PostMetrics, len(posts)),
	}

	if opts.DryRunLimit > 0 {
		opts.logInfo("Dry run: skipping insights for %d posts.", len(posts))
		return result, nil
	}

	samplePostID := ""
	for _, p := range posts {
		if p.ID != "" {
			samplePostID = p.ID
			break
		}
	}

	if samplePostID == "" {
		opts.logWarn("No post ids found; insight columns will be zeroed.")
	} else {
		opts.logInfo("Discovering valid insights metrics (once per run)...")
		result.ValidMetrics, err = insights.ResolveValidMetrics(ctx, client, samplePostID, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.logInfo("Valid metrics: %d of %d candidates", len(result.ValidMetrics), len(insights.MetricCandidates))
	}

	for i, post := range posts {
		if post.ID == "" {
			continue
		}
		opts.logInfo("Processing post %d/%d: %s", i+1, len(posts), post.ID)

		metrics, err := insights.FetchPostMetrics(ctx, client, post.ID, result.ValidMetrics)
		if err != nil {
			if graph.IsFatal(err) {
				return nil, err
			}
			opts.logWarn("Insights failed for post %s, using zeroed metrics: %v", post.ID, err)
			metrics = insights.PostMetrics{}
		}
		result.Metrics[post.ID] = metrics
		result.Rows = append(result.Rows, report.EngagementRow(post, metrics, pageName))
	}

	return result, nil
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight and returns unix
// seconds.
func ParseDate(date string) (int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return t.UTC().Unix(), nil
}

var adAccountIDPattern = regexp.MustCompile(`^\d+$`)

// NormalizeAdAccountID accepts "123" or "act_123" and returns the bare
// numeric id. Empty or placeholder values normalize to "" (no ad account);
// anything else is an error.
func NormalizeAdAccountID(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" || v == "<AD_ACCOUNT_ID>" {
		return "", nil
	}
	v = strings.TrimPrefix(v, "act_")
	if !adAccountIDPattern.MatchString(v) {
		return "", fmt.Errorf("invalid ad account id %q: expected \"123\" or \"act_123\"", value)
	}
	return v, nil
}
