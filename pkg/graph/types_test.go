package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostTitle(t *testing.T) {
	assert.Equal(t, "hello", Post{Message: "hello", Story: "shared a link"}.Title())
	assert.Equal(t, "shared a link", Post{Story: "shared a link"}.Title())
	assert.Equal(t, "", Post{}.Title())
}

func TestPostPostType(t *testing.T) {
	assert.Equal(t, "added_photos", Post{StatusType: "added_photos", Type: "photo"}.PostType())
	assert.Equal(t, "photo", Post{Type: "photo"}.PostType())
	assert.Equal(t, "", Post{}.PostType())
}

func TestPostPublishUnix(t *testing.T) {
	tests := []struct {
		name        string
		createdTime string
		want        int64
	}{
		{name: "graph offset layout", createdTime: "2026-01-15T10:30:00+0000", want: 1768473000},
		{name: "rfc3339", createdTime: "2026-01-15T10:30:00+00:00", want: 1768473000},
		{name: "absent", createdTime: "", want: 0},
		{name: "garbage", createdTime: "yesterday", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Post{CreatedTime: tt.createdTime}.PublishUnix())
		})
	}
}

func TestAdStoryID(t *testing.T) {
	tests := []struct {
		name string
		ad   Ad
		want string
	}{
		{
			name: "adcreatives listing wins",
			ad: Ad{
				AdCreatives: &CreativeList{Data: []Creative{{EffectiveObjectStoryID: "123_456"}}},
				Creative:    &Creative{EffectiveObjectStoryID: "123_999"},
			},
			want: "123_456",
		},
		{
			name: "first non-empty creative in the listing",
			ad: Ad{
				AdCreatives: &CreativeList{Data: []Creative{{}, {EffectiveObjectStoryID: "123_456"}}},
			},
			want: "123_456",
		},
		{
			name: "inline creative fallback",
			ad:   Ad{Creative: &Creative{EffectiveObjectStoryID: "123_789"}},
			want: "123_789",
		},
		{
			name: "no join key",
			ad:   Ad{ID: "a9"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ad.StoryID())
		})
	}
}
