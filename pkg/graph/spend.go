package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SpendResult is the outcome of a single ad-insights fetch. Payload is the
// raw response, kept so diagnostic artifacts can sample what Graph actually
// returned.
type SpendResult struct {
	Amount     float64
	Wellformed bool
	Payload    json.RawMessage
}

type spendEnvelope struct {
	Data []struct {
		Spend json.RawMessage `json:"spend"`
	} `json:"data"`
}

// InsightsSpend fetches the spend recorded against a single ad over the
// run's date range (YYYY-MM-DD, inclusive). An empty insights payload means
// no delivery and yields 0.0; a malformed spend value also yields 0.0 with
// Wellformed=false so the caller can log it.
func (c *Client) InsightsSpend(ctx context.Context, adID, since, until string) (SpendResult, error) {
	params := url.Values{}
	params.Set("fields", "spend")
	params.Set("level", "ad")
	params.Set("time_range[since]", since)
	params.Set("time_range[until]", until)

	var body json.RawMessage
	if err := c.Get(ctx, c.Endpoint(adID, "insights"), params, &body); err != nil {
		return SpendResult{}, fmt.Errorf("fetch insights for ad %s: %w", adID, err)
	}

	result := SpendResult{Wellformed: true, Payload: body}
	var envelope spendEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return result, nil
	}

	result.Amount, result.Wellformed = ParseSpend(envelope.Data[0].Spend)
	return result, nil
}

// ParseSpend interprets a raw spend value from an insights row. Graph
// returns monetary amounts as JSON strings ("12.5"); bare numbers and null
// are accepted too. Anything else yields 0.0 with ok=false.
func ParseSpend(raw json.RawMessage) (amount float64, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, true
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	var number float64
	if err := json.Unmarshal(trimmed, &number); err == nil {
		return number, true
	}
	return 0, false
}
