package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	FallbackShortFormPost = "Error generating Twitter post"
	FallbackLongFormPost  = "Error generating LinkedIn post"
)

// PostSource tells whether social posts came from the model or the fallback pair.
type PostSource string

const (
	SourceParsed   PostSource = "parsed"
	SourceFallback PostSource = "fallback"
)

// SocialPosts holds a short-form (Twitter/X) and a long-form (LinkedIn) draft.
type SocialPosts struct {
	ShortFormPost string     `json:"shortFormPost"`
	LongFormPost  string     `json:"longFormPost"`
	Source        PostSource `json:"source"`
	// Err is the parse failure behind a fallback result. Nil when parsed.
	Err error `json:"-"`
}

// Fallback reports whether the posts are the fixed error strings.
func (p SocialPosts) Fallback() bool {
	return p.Source == SourceFallback
}

var errNotObject = errors.New("response is not a JSON object")

// ExtractSocialPosts strips code-fence markers from a model response and parses
// the social post object. Any failure yields the fallback pair; it never returns
// an error to the caller.
func ExtractSocialPosts(raw string) SocialPosts {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	posts, err := parseSocialPosts(text)
	if err != nil {
		return SocialPosts{
			ShortFormPost: FallbackShortFormPost,
			LongFormPost:  FallbackLongFormPost,
			Source:        SourceFallback,
			Err:           err,
		}
	}
	return posts
}

func parseSocialPosts(text string) (SocialPosts, error) {
	if !strings.HasPrefix(text, "{") {
		return SocialPosts{}, errNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return SocialPosts{}, fmt.Errorf("failed to parse social posts JSON: %w", err)
	}

	twitter, err := stringField(fields, "twitter")
	if err != nil {
		return SocialPosts{}, err
	}
	linkedin, err := stringField(fields, "linkedin")
	if err != nil {
		return SocialPosts{}, err
	}

	return SocialPosts{
		ShortFormPost: twitter,
		LongFormPost:  linkedin,
		Source:        SourceParsed,
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing %q key", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q is not a string: %w", key, err)
	}
	return s, nil
}
