package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/raine/ai-design-team/internal/storage"
	"github.com/rs/zerolog/log"
)

// CachedGenerator wraps a Generator with a response cache.
type CachedGenerator struct {
	inner Generator
	store storage.ResponseCache
	model string
}

// NewCachedGenerator creates a cached generator. The model name is part of
// the cache key so switching models never serves stale text.
func NewCachedGenerator(inner Generator, store storage.ResponseCache, model string) *CachedGenerator {
	return &CachedGenerator{inner: inner, store: store, model: model}
}

// hashRequest creates a SHA256 hash from the model, prompt and image data.
// Includes a length prefix for each field to prevent boundary collisions.
func hashRequest(model, prompt string, images []Image) string {
	h := sha256.New()
	writeField := func(b []byte) {
		// Write length to prevent boundary collisions (e.g. [A,B] vs [AB])
		binary.Write(h, binary.LittleEndian, int64(len(b)))
		h.Write(b)
	}
	writeField([]byte(model))
	writeField([]byte(prompt))
	for _, img := range images {
		writeField([]byte(img.MIMEType))
		writeField(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generate implements Generator with caching.
func (c *CachedGenerator) Generate(ctx context.Context, prompt string, images []Image) (*Result, error) {
	hash := hashRequest(c.model, prompt, images)

	if c.store != nil {
		cached, err := c.store.GetResponse(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check response cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("response cache hit")
			return &Result{Text: cached.Text, Cached: true}, nil
		}
	}

	result, err := c.inner.Generate(ctx, prompt, images)
	if err != nil {
		return nil, err
	}

	if c.store != nil && result.Text != "" {
		entry := &storage.CachedResponse{Model: c.model, Text: result.Text}
		if err := c.store.SetResponse(hash, entry); err != nil {
			log.Warn().Err(err).Msg("failed to cache response")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached response")
		}
	}

	return result, nil
}
