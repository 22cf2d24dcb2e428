package graph

import "time"

// Post is a single Page post as returned by the /{page-id}/posts listing.
// Identity is ID; a post is never mutated after it has been fetched.
type Post struct {
	ID           string `json:"id"`
	CreatedTime  string `json:"created_time,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	Message      string `json:"message,omitempty"`
	Story        string `json:"story,omitempty"`
	StatusType   string `json:"status_type,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Title returns the post message, falling back to the story text for posts
// without one (shares, life events).
func (p Post) Title() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Story
}

// PostType returns status_type when present and the legacy type field
// otherwise. Either may be absent depending on the field set the listing
// was fetched with.
func (p Post) PostType() string {
	if p.StatusType != "" {
		return p.StatusType
	}
	return p.Type
}

// Graph timestamps arrive as ISO 8601 with a numeric zone offset.
var createdTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// PublishUnix returns the post's publish time as unix seconds, or zero when
// the created_time field is absent or unparsable. Zero sorts first, which is
// what the report writers want for undated posts.
func (p Post) PublishUnix() int64 {
	for _, layout := range createdTimeLayouts {
		if t, err := time.Parse(layout, p.CreatedTime); err == nil {
			return t.Unix()
		}
	}
	return 0
}

// Creative is the subset of an ad creative the exporter cares about:
// the page post the creative promotes.
type Creative struct {
	ID                     string `json:"id,omitempty"`
	EffectiveObjectStoryID string `json:"effective_object_story_id,omitempty"`
}

// CreativeList is the nested adcreatives collection on an Ad.
type CreativeList struct {
	Data []Creative `json:"data"`
}

// Ad is a single ad from the /act_{account-id}/ads listing.
type Ad struct {
	ID          string        `json:"id"`
	AdCreatives *CreativeList `json:"adcreatives,omitempty"`
	Creative    *Creative     `json:"creative,omitempty"`
	Status      string        `json:"status,omitempty"`
	CreatedTime string        `json:"created_time,omitempty"`
	UpdatedTime string        `json:"updated_time,omitempty"`
}

// StoryID returns the page-post id recorded on the ad's creative, used as
// the join key for spend attribution. The adcreatives listing is consulted
// first, the inline creative second; the first non-empty value wins. An
// empty string means the ad cannot be attributed to a post.
func (a Ad) StoryID() string {
	if a.AdCreatives != nil {
		for _, c := range a.AdCreatives.Data {
			if c.EffectiveObjectStoryID != "" {
				return c.EffectiveObjectStoryID
			}
		}
	}
	if a.Creative != nil && a.Creative.EffectiveObjectStoryID != "" {
		return a.Creative.EffectiveObjectStoryID
	}
	return ""
}

// errorEnvelope is the error object Graph returns in place of a payload.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
		TraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
