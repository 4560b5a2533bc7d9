package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSocialPosts(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantShort string
		wantLong  string
		wantSrc   PostSource
	}{
		{
			name:      "plain object",
			raw:       `{"twitter": "New dashboard! #ux", "linkedin": "We shipped a redesign."}`,
			wantShort: "New dashboard! #ux",
			wantLong:  "We shipped a redesign.",
			wantSrc:   SourceParsed,
		},
		{
			name:      "fenced json",
			raw:       "```json\n{\"twitter\": \"T\", \"linkedin\": \"L\"}\n```",
			wantShort: "T",
			wantLong:  "L",
			wantSrc:   SourceParsed,
		},
		{
			name:      "bare fences with surrounding whitespace",
			raw:       "  \n```\n{\"twitter\": \"T\", \"linkedin\": \"L\"}\n```  \n",
			wantShort: "T",
			wantLong:  "L",
			wantSrc:   SourceParsed,
		},
		{
			name:      "extra keys ignored",
			raw:       `{"twitter": "T", "linkedin": "L", "instagram": "I"}`,
			wantShort: "T",
			wantLong:  "L",
			wantSrc:   SourceParsed,
		},
		{
			name:      "long twitter post kept verbatim",
			raw:       `{"twitter": "` + strings.Repeat("a", 300) + `", "linkedin": "L"}`,
			wantShort: strings.Repeat("a", 300),
			wantLong:  "L",
			wantSrc:   SourceParsed,
		},
		{
			name:      "prose without json",
			raw:       "Here are some posts you could use.",
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
		{
			name:      "missing linkedin key",
			raw:       `{"twitter": "T"}`,
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
		{
			name:      "non string value",
			raw:       `{"twitter": 42, "linkedin": "L"}`,
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
		{
			name:      "top level array",
			raw:       `[{"twitter": "T", "linkedin": "L"}]`,
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
		{
			name:      "truncated object",
			raw:       "```json\n{\"twitter\": \"T\", \"linkedin\": ",
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
		{
			name:      "empty response",
			raw:       "",
			wantShort: FallbackShortFormPost,
			wantLong:  FallbackLongFormPost,
			wantSrc:   SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSocialPosts(tt.raw)
			assert.Equal(t, tt.wantShort, got.ShortFormPost)
			assert.Equal(t, tt.wantLong, got.LongFormPost)
			assert.Equal(t, tt.wantSrc, got.Source)
			if tt.wantSrc == SourceFallback {
				assert.Error(t, got.Err)
				assert.True(t, got.Fallback())
			} else {
				assert.NoError(t, got.Err)
				assert.False(t, got.Fallback())
			}
		})
	}
}
