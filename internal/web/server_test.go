package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/session"
	"github.com/stretchr/testify/assert"
)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	social string // Reply to the social post prompt, valid JSON when empty
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, images []llm.Image) (*llm.Result, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if strings.Contains(prompt, "'twitter' and 'linkedin'") {
		if g.social != "" {
			return &llm.Result{Text: g.social}, nil
		}
		return &llm.Result{Text: `{"twitter": "Fresh look #design", "linkedin": "A longer post."}`}, nil
	}
	return &llm.Result{
		Text:  "## Findings\n\nStrong **contrast**.\n\n<script>alert(1)</script>",
		Usage: llm.Usage{TotalTokens: 10, CostUSD: 0.001},
	}, nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	server   *httptest.Server
	gen      *fakeGenerator
	keys     []string
	sessions *session.Store
}

func newTestEnv(t *testing.T, defaultKey string) *testEnv {
	t.Helper()
	sealer, err := session.NewSealer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{gen: &fakeGenerator{}, sessions: session.NewStore(time.Hour)}
	srv, err := NewServer(Options{
		Model:         "test-model",
		DefaultAPIKey: defaultKey,
		Sessions:      env.sessions,
		Sealer:        sealer,
		NewGenerator: func(ctx context.Context, apiKey string) (llm.Generator, error) {
			env.keys = append(env.keys, apiKey)
			return env.gen, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	env.server = httptest.NewServer(srv.Routes())
	t.Cleanup(env.server.Close)
	return env
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	field string
	name  string
	data  []byte
}

func multipartBody(t *testing.T, values url.Values, files []upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range values {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func findCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestDashboardWithoutKey(t *testing.T) {
	env := newTestEnv(t, "")

	res, err := http.Get(env.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, noKeyWarning)
	assert.NotContains(t, body, `id="analyze-form"`)
	assert.NotNil(t, findCookie(res, sessionCookieName))
}

func TestDashboardWithOperatorKey(t *testing.T) {
	env := newTestEnv(t, "operator-key")

	res, err := http.Get(env.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, body, noKeyWarning)
	assert.Contains(t, body, `id="analyze-form"`)
	assert.Contains(t, body, "Using the server&#39;s API key.")
}

func TestSetKeyRestoresFromCookie(t *testing.T) {
	env := newTestEnv(t, "")
	client := noRedirectClient()

	res, err := client.PostForm(env.server.URL+"/key", url.Values{"api_key": {"  user-key  "}})
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	keyCookie := findCookie(res, keyCookieName)
	if keyCookie == nil {
		t.Fatal("expected api key cookie")
	}
	assert.NotContains(t, keyCookie.Value, "user-key")
	assert.True(t, keyCookie.HttpOnly)

	// A fresh session with only the sealed cookie gets the key back.
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/state", nil)
	req.AddCookie(keyCookie)
	res, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var state stateResponse
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	assert.True(t, state.HasKey)
	st, created := env.sessions.Get(state.SessionID)
	assert.False(t, created)
	assert.Equal(t, "user-key", st.APIKey())
}

func TestSetEmptyKey(t *testing.T) {
	env := newTestEnv(t, "")

	res, err := noRedirectClient().PostForm(env.server.URL+"/key", url.Values{"api_key": {"   "}})
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, emptyKeyWarning)
	assert.Nil(t, findCookie(res, keyCookieName))
}

func TestClearKey(t *testing.T) {
	env := newTestEnv(t, "")
	client := noRedirectClient()

	res, err := client.PostForm(env.server.URL+"/key", url.Values{"api_key": {"user-key"}})
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)
	sessionCookie := findCookie(res, sessionCookieName)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/key/clear", nil)
	req.AddCookie(sessionCookie)
	res, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)

	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	cleared := findCookie(res, keyCookieName)
	if cleared == nil {
		t.Fatal("expected api key cookie to be cleared")
	}
	assert.True(t, cleared.MaxAge < 0)

	st, _ := env.sessions.Get(sessionCookie.Value)
	assert.Empty(t, st.APIKey())
}

func TestAnalyzeWithoutKey(t *testing.T) {
	env := newTestEnv(t, "")

	body, contentType := multipartBody(t, nil, []upload{{"designs", "a.png", pngBytes(t, 20, 20)}})
	res, err := http.Post(env.server.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	html := readBody(t, res)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, html, noKeyWarning)
	assert.Equal(t, 0, env.gen.count())
}

func TestAnalyzeWithoutDesigns(t *testing.T) {
	env := newTestEnv(t, "operator-key")

	body, contentType := multipartBody(t, url.Values{"categories": {"Visual Design"}}, []upload{
		{"designs", "notes.txt", []byte("not an image")},
	})
	res, err := http.Post(env.server.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	html := readBody(t, res)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, html, noDesignsError)
	assert.Contains(t, html, "Skipped notes.txt")
	assert.Equal(t, 0, env.gen.count())
	assert.Empty(t, env.keys)
}

func TestAnalyzeRendersReport(t *testing.T) {
	env := newTestEnv(t, "operator-key")

	body, contentType := multipartBody(t, url.Values{
		"categories": {"Visual Design", "User Experience"},
		"focus":      {"Typography"},
		"context":    {"  A fintech app  "},
	}, []upload{
		{"designs", "home.png", pngBytes(t, 400, 800)},
		{"competitors", "rival.png", pngBytes(t, 50, 50)},
	})
	res, err := http.Post(env.server.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	html := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"operator-key"}, env.keys)
	// vision, social posts, ux, synthesis
	assert.Equal(t, 4, env.gen.count())

	assert.Contains(t, html, "🎨 Visual Design Analysis")
	assert.Contains(t, html, "🔄 User Experience Analysis")
	assert.NotContains(t, html, "📊 Market Analysis")
	assert.Contains(t, html, "<strong>contrast</strong>")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "Fresh look #design")
	assert.Contains(t, html, "Characters: 18/280")
	assert.Contains(t, html, "🔍 Key Takeaways")
	assert.Contains(t, html, `class="radar"`)
	assert.Contains(t, html, "Design Preview")
	assert.Contains(t, html, "Competitor Preview")
	assert.Contains(t, html, "Dimensions: 140x280")
	assert.Contains(t, html, "data:image/jpeg;base64,")
	assert.Contains(t, html, "A fintech app")
}

func TestAnalyzeTooLarge(t *testing.T) {
	sealer, err := session.NewSealer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(Options{
		DefaultAPIKey:  "operator-key",
		MaxUploadBytes: 1024,
		Sessions:       session.NewStore(time.Hour),
		Sealer:         sealer,
		NewGenerator: func(ctx context.Context, apiKey string) (llm.Generator, error) {
			return &fakeGenerator{}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body, contentType := multipartBody(t, nil, []upload{{"designs", "big.png", bytes.Repeat([]byte{1}, 4096)}})
	res, err := http.Post(ts.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)

	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestAnalyzeGeneratorError(t *testing.T) {
	sealer, err := session.NewSealer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(Options{
		DefaultAPIKey: "operator-key",
		Sessions:      session.NewStore(time.Hour),
		Sealer:        sealer,
		NewGenerator: func(ctx context.Context, apiKey string) (llm.Generator, error) {
			return nil, errors.New("bad key")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body, contentType := multipartBody(t, nil, []upload{{"designs", "a.png", pngBytes(t, 10, 10)}})
	res, err := http.Post(ts.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	html := readBody(t, res)

	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, html, "bad key")
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	body, contentType := multipartBody(t, nil, []upload{
		{"designs", "wide.png", pngBytes(t, 1400, 700)},
		{"designs", "broken.png", []byte("garbage")},
		{"designs", "doc.pdf", []byte("%PDF")},
	})
	res, err := http.Post(env.server.URL+"/preview", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var out previewResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	assert.Nil(t, out.Competitors)
	if assert.NotNil(t, out.Designs) {
		assert.Equal(t, 2, out.Designs.Cols)
		assert.Equal(t, 1, out.Designs.Rows)
		if assert.Len(t, out.Designs.Items, 2) {
			assert.Equal(t, 350, out.Designs.Items[0].Width)
			assert.Equal(t, 175, out.Designs.Items[0].Height)
			assert.Contains(t, out.Designs.Items[1].Warning, "Error processing image broken.png")
		}
	}
	if assert.Len(t, out.Notices, 1) {
		assert.Contains(t, out.Notices[0], "Skipped doc.pdf")
	}
	assert.Equal(t, 0, env.gen.count())
}

func TestPreviewRejectsNonMultipart(t *testing.T) {
	env := newTestEnv(t, "")

	res, err := http.Post(env.server.URL+"/preview", "text/plain", strings.NewReader("hi"))
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, `"error"`)
}

func TestStateEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	res, err := http.Get(env.server.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var state stateResponse
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	assert.NotEmpty(t, state.SessionID)
	assert.False(t, state.HasKey)
	assert.Len(t, state.Agents, 3)
	assert.Equal(t, "waiting", string(state.Agents["vision"].Status))
}

func TestStateCORS(t *testing.T) {
	env := newTestEnv(t, "")

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/state", nil)
	req.Header.Set("Origin", "https://example.com")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, res)

	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, "")

	res, err := http.Get(env.server.URL + "/static/app.css")
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, ".radar")
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestDashboardEscapesLottieJSON(t *testing.T) {
	anim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nm":"</script><script>window.pwned=1</script>","layers":[]}`))
	}))
	defer anim.Close()

	sealer, err := session.NewSealer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(Options{
		Sessions: session.NewStore(time.Hour),
		Sealer:   sealer,
		NewGenerator: func(ctx context.Context, apiKey string) (llm.Generator, error) {
			return &fakeGenerator{}, nil
		},
		Lottie: NewLottieLoader(anim.URL),
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "lottie.loadAnimation")
	assert.NotContains(t, body, "<script>window.pwned=1</script>")
	assert.Contains(t, body, `\u003c/script\u003e\u003cscript\u003ewindow.pwned=1`)
}

func TestAnalyzeSocialFallbackIsNotAnError(t *testing.T) {
	env := newTestEnv(t, "operator-key")
	env.gen.social = "Sorry, here are some ideas instead of JSON."

	body, contentType := multipartBody(t, url.Values{"categories": {"Visual Design"}}, []upload{
		{"designs", "home.png", pngBytes(t, 40, 40)},
	})
	res, err := http.Post(env.server.URL+"/analyze", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	html := readBody(t, res)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, html, llm.FallbackShortFormPost)
	assert.Contains(t, html, llm.FallbackLongFormPost)
	assert.Contains(t, html, `class="social" data-fallback`)
	assert.NotContains(t, html, `class="alert`)
}
