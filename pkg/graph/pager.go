package graph

import (
	"context"
	"encoding/json"
	"net/url"
)

// Paging is the cursor envelope of a Graph collection response. Absence of
// Next marks the end of the collection.
type Paging struct {
	Next string `json:"next"`
}

// page is one response of a cursor-paginated listing.
type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging *Paging           `json:"paging"`
}

// Collect flattens a cursor-paginated collection into a single ordered
// slice of raw records. It repeatedly fetches the current URL, appends the
// data items in response order, and follows paging.next until a page omits
// it. A response that does not decode as a collection envelope terminates
// the traversal as a single-page result rather than failing.
//
// stop is consulted after every item; a nil stop never stops early.
func (c *Client) Collect(ctx context.Context, rawURL string, params url.Values, stop func(count int) bool) ([]json.RawMessage, error) {
	var items []json.RawMessage

	for {
		var body json.RawMessage
		if err := c.Get(ctx, rawURL, params, &body); err != nil {
			return nil, err
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return items, nil
		}

		for _, item := range p.Data {
			items = append(items, item)
			if stop != nil && stop(len(items)) {
				return items, nil
			}
		}

		if p.Paging == nil || p.Paging.Next == "" {
			return items, nil
		}
		// The cursor URL is fully qualified and already carries the query,
		// access token included.
		rawURL = p.Paging.Next
		params = nil
	}
}

func decodeAll[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
