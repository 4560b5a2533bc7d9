package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/raine/ai-design-team/config"
	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/session"
	"github.com/raine/ai-design-team/internal/storage"
	"github.com/raine/ai-design-team/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	sessionSweepInterval = 5 * time.Minute
	cachePurgeInterval   = time.Hour
	shutdownTimeout      = 15 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	if missing := config.MissingRequired(); len(missing) > 0 && isInteractiveTerminal() {
		if !runSetupWizard() {
			waitOnWindows()
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("invalid configuration: %v", err)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fatalWithWait("failed to set up logging: %v", err)
	}
	defer closeLog()

	if cfg.SessionSecret == "" {
		cfg.SessionSecret, err = session.GenerateSecret()
		if err != nil {
			fatalWithWait("failed to generate session secret: %v", err)
		}
		log.Warn().Msg("SESSION_SECRET is not set, remembered API keys will not survive a restart")
	}

	sealer, err := session.NewSealer(cfg.SessionSecret)
	if err != nil {
		fatalWithWait("failed to derive session key: %v", err)
	}

	cache, err := storage.NewSQLiteStore(cfg.CacheDBPath)
	if err != nil {
		fatalWithWait("failed to initialize response cache: %v", err)
	}
	defer cache.Close()
	if cfg.CacheDBPath == "" {
		log.Info().Msg("response cache kept in memory")
	} else {
		log.Info().Str("dbPath", cfg.CacheDBPath).Msg("response cache initialized")
	}

	sessions := session.NewStore(cfg.SessionTTL)

	newGenerator := func(ctx context.Context, apiKey string) (llm.Generator, error) {
		gemini, err := llm.NewGeminiClient(ctx, apiKey, cfg.Model, cfg.CallTimeout)
		if err != nil {
			return nil, err
		}
		return llm.NewCachedGenerator(gemini, cache, cfg.Model), nil
	}

	server, err := web.NewServer(web.Options{
		Model:          cfg.Model,
		DefaultAPIKey:  cfg.GeminiAPIKey,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Sessions:       sessions,
		Sealer:         sealer,
		NewGenerator:   newGenerator,
		Lottie:         web.NewLottieLoader(cfg.LottieURL),
	})
	if err != nil {
		fatalWithWait("failed to initialize web server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Analysis runs several model calls inside one request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Str("model", cfg.Model).Bool("operatorKey", cfg.GeminiAPIKey != "").Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sessions.RunSweeper(ctx, sessionSweepInterval)
		return nil
	})

	g.Go(func() error {
		runCachePurge(ctx, cache, cfg.CacheMaxAge)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// setupLogging configures the global logger. JOURNAL_STREAM is set by systemd;
// journald adds its own timestamps, so plain console output goes to stderr.
func setupLogging(cfg *config.Config) (func(), error) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.LogFormat == "json" {
		out = os.Stderr
	}

	closer := func() {}
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); !underSystemd && cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		var fileWriter io.Writer = zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		if cfg.LogFormat == "json" {
			fileWriter = logFile
		}
		out = io.MultiWriter(out, fileWriter)
		closer = func() { logFile.Close() }
	}

	log.Logger = log.Output(out)
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFile != "" {
		log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")
	}
	return closer, nil
}

func runCachePurge(ctx context.Context, cache storage.ResponseCache, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.PurgeOlderThan(maxAge)
			if err != nil {
				log.Warn().Err(err).Msg("failed to purge response cache")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("purged old cached responses")
			}
		}
	}
}
