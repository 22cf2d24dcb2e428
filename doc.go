// Package fbexporter exports Facebook Page post metadata together with
// engagement insights (CSV) or attributed ad spend (XLSX) via the Graph
// API, read-only.
//
// The CLI lives in cmd/fb-exporter; this root package exposes the same
// pipelines as a Go API so that callers can embed an export in their own
// tools without shelling out.
//
// # Import
//
// The module path contains a hyphen but Go package names cannot, so the
// package is named fbexporter:
//
//	import "github.com/hellenic-development/fb-exporter" // package fbexporter
//
// # Quick start
//
//	result, err := fbexporter.RunSpend(ctx, fbexporter.Options{
//	    AccessToken: os.Getenv("FB_PAGE_ACCESS_TOKEN"),
//	    PageID:      "101275806400438",
//	    AdAccountID: "act_123456789",
//	    Since:       "2026-01-01",
//	    Until:       "2026-01-31",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = report.WriteSpendXLSX("fb_post_spend_report.xlsx", result.Rows)
//
// # Logging
//
// Pass a [Logger] implementation in [Options.Logger] to receive progress
// messages. A nil Logger silences all output. Log lines and error messages
// never contain the access token; cursor URLs are redacted before they are
// shown.
//
// # Resilience
//
// Every Graph request runs through a client that classifies failures as
// fatal (token/permission errors stop the run), retryable (rate limits,
// 429 and 5xx responses, transport faults retry with exponential backoff
// and jitter), or other (the call site decides). A fixed throttle after
// each successful request bounds the steady-state call rate.
package fbexporter
