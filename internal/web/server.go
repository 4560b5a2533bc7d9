// Package web serves the design critique dashboard.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/raine/ai-design-team/internal/analysis"
	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/session"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	sessionCookieName = "dt_session"
	keyCookieName     = "dt_key"
	keyCookieMaxAge   = 30 * 24 * time.Hour
)

// GeneratorFactory builds a model client for one API key.
type GeneratorFactory func(ctx context.Context, apiKey string) (llm.Generator, error)

// Options configures a Server. Sessions, Sealer and NewGenerator are required.
type Options struct {
	Model          string
	DefaultAPIKey  string // Operator key used when the session has none
	MaxUploadBytes int64
	CORSOrigins    []string
	Sessions       *session.Store
	Sealer         *session.Sealer
	NewGenerator   GeneratorFactory
	Lottie         *LottieLoader // Optional
}

type Server struct {
	opts      Options
	templates *template.Template
	static    http.Handler
}

func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil || opts.Sealer == nil || opts.NewGenerator == nil {
		return nil, errors.New("web: sessions, sealer and generator factory are required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if tmpl.Lookup("base") == nil {
		return nil, errors.New("missing base template")
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	return &Server{
		opts:      opts,
		templates: tmpl,
		static:    http.StripPrefix("/static/", http.FileServer(http.FS(static))),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger)
	mux.Use(middleware.Recoverer)

	if err := RegisterHealthCheck(mux); err != nil {
		log.Error().Err(err).Msg("health check setup failed")
	}

	mux.Handle("/static/*", s.static)

	mux.Get("/", s.handleDashboard)
	mux.Post("/key", s.handleSetKey)
	mux.Post("/key/clear", s.handleClearKey)
	mux.Post("/analyze", s.handleAnalyze)
	mux.Post("/preview", s.wrap(s.handlePreview))

	mux.Route("/api", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		rt.Get("/state", s.wrap(s.handleState))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errStatus carries an HTTP status through a handlerFunc error.
type errStatus struct {
	status int
	err    error
}

func (e *errStatus) Error() string { return e.err.Error() }
func (e *errStatus) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return &errStatus{status: status, err: err}
}

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		var se *errStatus
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &se):
			status = se.status
		case errors.As(err, &maxBytes):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, analysis.ErrNoDesignFiles):
			status = http.StatusBadRequest
		}
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	data.RequestPath = r.URL.Path
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "base", data); err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// sessionFor returns the caller's session, issuing a session cookie for new
// sessions and restoring a remembered API key from its sealed cookie.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.State {
	var id string
	if c, err := r.Cookie(sessionCookieName); err == nil {
		id = c.Value
	}

	state, created := s.opts.Sessions.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    state.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if state.APIKey() == "" {
		if c, err := r.Cookie(keyCookieName); err == nil && c.Value != "" {
			key, err := s.opts.Sealer.Open(c.Value)
			if err != nil {
				log.Debug().Err(err).Msg("ignoring unreadable api key cookie")
			} else {
				state.SetAPIKey(key)
			}
		}
	}

	return state
}

// apiKeyFor returns the session's key, falling back to the operator key.
func (s *Server) apiKeyFor(state *session.State) string {
	if key := state.APIKey(); key != "" {
		return key
	}
	return s.opts.DefaultAPIKey
}

func (s *Server) rememberKey(w http.ResponseWriter, r *http.Request, key string) error {
	sealed, err := s.opts.Sealer.Seal(key)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     keyCookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(keyCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func forgetKey(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     keyCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
