package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const lottieRetryAfter = time.Minute

// LottieLoader fetches the welcome animation shown while no API key is set.
// The first successful response is kept. After a failure no request is made
// for lottieRetryAfter, and concurrent callers share one in-flight fetch.
type LottieLoader struct {
	url        string
	httpClient *resty.Client
	now        func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	data     json.RawMessage
	failedAt time.Time
}

func NewLottieLoader(url string) *LottieLoader {
	return &LottieLoader{
		url:        url,
		httpClient: resty.New().SetDebug(false).SetTimeout(10 * time.Second),
		now:        time.Now,
	}
}

// Load returns the animation JSON, or nil when it is unavailable.
func (l *LottieLoader) Load(ctx context.Context) json.RawMessage {
	if l == nil || l.url == "" {
		return nil
	}

	l.mu.Lock()
	data, failedAt := l.data, l.failedAt
	l.mu.Unlock()
	if data != nil {
		return data
	}
	if !failedAt.IsZero() && l.now().Sub(failedAt) < lottieRetryAfter {
		return nil
	}

	v, _, _ := l.group.Do(l.url, func() (any, error) {
		data := l.fetch(ctx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if data == nil {
			l.failedAt = l.now()
		} else {
			l.data = data
		}
		return data, nil
	})
	return v.(json.RawMessage)
}

func (l *LottieLoader) fetch(ctx context.Context) json.RawMessage {
	res, err := l.httpClient.R().SetContext(ctx).Get(l.url)
	if err != nil {
		log.Debug().Err(err).Str("url", l.url).Msg("failed to fetch lottie animation")
		return nil
	}
	if res.StatusCode() != http.StatusOK {
		log.Debug().Int("status", res.StatusCode()).Str("url", l.url).Msg("lottie animation unavailable")
		return nil
	}

	body := res.Body()
	if !json.Valid(body) {
		log.Debug().Str("url", l.url).Msg("lottie animation is not valid json")
		return nil
	}
	return json.RawMessage(body)
}
