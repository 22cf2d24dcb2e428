package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Listing page size for posts and ads.
const listLimit = 100

// PostFieldSets is the fallback ladder for the posts listing. Some pages
// reject the aggregated attachment fields (Graph code 12); when that
// happens the listing is retried with the next, reduced field set.
var PostFieldSets = []string{
	"id,created_time,permalink_url,message,story,status_type,type",
	"id,created_time,permalink_url,message,story,type",
	"id,created_time,permalink_url,message,story",
}

// SpendPostFields is the minimal field set used by the spend-attribution
// pipeline, which only needs identity and ordering.
const SpendPostFields = "id,created_time"

// adFields requests the creative story id through both known paths.
const adFields = "id,adcreatives{effective_object_story_id}," +
	"creative{effective_object_story_id,id},created_time,updated_time,status"

// attachmentDeprecationMarker identifies the Graph code 12 variant that
// means "this field set is gone", as opposed to other deprecations.
const attachmentDeprecationMarker = "deprecate_post_aggregated_fields_for_attachement"

// FetchPageName resolves the page's display name.
func (c *Client) FetchPageName(ctx context.Context, pageID string) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	params := url.Values{}
	params.Set("fields", "name")
	if err := c.Get(ctx, c.Endpoint(pageID), params, &out); err != nil {
		return "", fmt.Errorf("fetch page name: %w", err)
	}
	return out.Name, nil
}

// FetchPosts lists the page's posts published in [since, until] (unix
// seconds) with the given field set, following the pagination cursor to the
// end. limit > 0 stops the listing after that many posts (dry runs).
func (c *Client) FetchPosts(ctx context.Context, pageID, fields string, since, until int64, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("since", strconv.FormatInt(since, 10))
	params.Set("until", strconv.FormatInt(until, 10))
	params.Set("limit", strconv.Itoa(listLimit))

	var stop func(int) bool
	if limit > 0 {
		stop = func(count int) bool { return count >= limit }
	}

	items, err := c.Collect(ctx, c.Endpoint(pageID, "posts"), params, stop)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	posts, err := decodeAll[Post](items)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: decode: %w", err)
	}
	return posts, nil
}

// FetchPostsWithFallback is FetchPosts over the PostFieldSets ladder: when
// Graph rejects a field set with the attachment-aggregation deprecation it
// restarts the listing with the next, reduced set.
func (c *Client) FetchPostsWithFallback(ctx context.Context, pageID string, since, until int64, limit int) ([]Post, error) {
	var lastErr error
	for _, fields := range PostFieldSets {
		posts, err := c.FetchPosts(ctx, pageID, fields, since, until, limit)
		if err == nil {
			return posts, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == 12 &&
			strings.Contains(apiErr.Message, attachmentDeprecationMarker) {
			c.warnf("posts field set rejected, retrying with fallback fields: %s", fields)
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// FetchAds lists every ad in the account (accountID without the act_
// prefix), including the creative fields that carry the attribution join
// key. Unmatched or keyless ads are not filtered here; that is the
// attribution engine's job.
func (c *Client) FetchAds(ctx context.Context, accountID string) ([]Ad, error) {
	params := url.Values{}
	params.Set("fields", adFields)
	params.Set("limit", strconv.Itoa(listLimit))

	items, err := c.Collect(ctx, c.Endpoint("act_"+accountID, "ads"), params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch ads: %w", err)
	}
	ads, err := decodeAll[Ad](items)
	if err != nil {
		return nil, fmt.Errorf("fetch ads: decode: %w", err)
	}
	return ads, nil
}
