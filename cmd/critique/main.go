package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raine/ai-design-team/config"
	"github.com/raine/ai-design-team/internal/analysis"
	"github.com/raine/ai-design-team/internal/llm"
	"github.com/raine/ai-design-team/internal/preview"
	"github.com/raine/ai-design-team/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	categories := flag.String("categories", string(analysis.CategoryVisual), "Comma separated analysis types, empty skips all model calls")
	focus := flag.String("focus", "Color Scheme,Layout", "Comma separated focus areas")
	designContext := flag.String("context", "", "Additional context for the critique")
	competitors := flag.String("competitors", "", "Comma separated competitor image paths")
	previewDir := flag.String("preview-dir", "", "Write compressed previews to this directory")
	cachePath := flag.String("cache", "", "SQLite response cache path (in memory if empty)")
	rawJSON := flag.Bool("json", false, "Output the report as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <design-image>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_MODEL   - Optional, defaults to %s\n\n", config.DefaultModel)
		flag.PrintDefaults()
		return errors.New("no design images given")
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	designs, err := readImages(flag.Args())
	if err != nil {
		return err
	}
	rivals, err := readImages(splitList(*competitors))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *previewDir != "" {
		if err := writePreviews(ctx, *previewDir, designs, rivals); err != nil {
			return err
		}
	}

	cache, err := storage.NewSQLiteStore(*cachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cache.Close()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.CallTimeout)
	if err != nil {
		return fmt.Errorf("error creating Gemini client: %w", err)
	}
	gen := llm.NewCachedGenerator(gemini, cache, cfg.Model)

	req := analysis.Request{
		Designs:     designs,
		Competitors: rivals,
		Categories:  analysis.ParseCategories(splitList(*categories)),
		FocusAreas:  analysis.ParseFocusAreas(splitList(*focus)),
		Context:     *designContext,
	}

	report, err := analysis.NewService(gen).Run(ctx, req, analysis.NewTracker(), func(c analysis.Category, st analysis.AgentState) {
		fmt.Fprintf(os.Stderr, "[%s] %s %d%%\n", c.AgentKey(), st.Status, st.Progress)
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if *rawJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	}
	printReport(os.Stdout, report)
	return nil
}

func printReport(w io.Writer, report *analysis.Report) {
	if len(report.Sections) == 0 {
		fmt.Fprintln(w, "No analysis types selected.")
		fmt.Fprintln(w)
	}
	for _, s := range report.Sections {
		fmt.Fprintf(w, "=== %s ===\n\n", s.Title)
		if s.Failed() {
			fmt.Fprintf(w, "Error: %s\n\n", s.Error)
			continue
		}
		fmt.Fprintln(w, s.Text)
		fmt.Fprintln(w)
	}

	if p := report.SocialPosts; p != nil {
		fmt.Fprintln(w, "=== 📱 Social Media Posts ===")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Twitter/X (%d/280):\n%s\n\n", len([]rune(p.ShortFormPost)), p.ShortFormPost)
		fmt.Fprintf(w, "LinkedIn:\n%s\n\n", p.LongFormPost)
	}

	if s := report.Synthesis; s != nil {
		fmt.Fprintf(w, "=== %s ===\n\n", s.Title)
		if s.Failed() {
			fmt.Fprintf(w, "Error: %s\n\n", s.Error)
		} else {
			fmt.Fprintln(w, s.Text)
			fmt.Fprintln(w)
		}
	}

	if len(report.Scores) > 0 {
		fmt.Fprintln(w, "Scores (placeholder):")
		for _, sc := range report.Scores {
			fmt.Fprintf(w, "  %-18s %.1f\n", sc.Metric, sc.Value)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Tokens:      %d in / %d out / %d total\n",
		report.Usage.InputTokens, report.Usage.OutputTokens, report.Usage.TotalTokens)
	fmt.Fprintf(w, "Cost:        $%.6f\n", report.Usage.CostUSD)
}

func writePreviews(ctx context.Context, dir string, sets ...[]llm.Image) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create preview dir: %w", err)
	}
	for _, images := range sets {
		files := make([]preview.File, len(images))
		for i, img := range images {
			files[i] = preview.File{Name: img.Name, Data: img.Data}
		}
		for _, item := range preview.PreviewAll(ctx, files, preview.Options{}) {
			if item.Err != nil {
				fmt.Fprintln(os.Stderr, item.Warning())
				continue
			}
			base := strings.TrimSuffix(filepath.Base(item.Name), filepath.Ext(item.Name))
			out := filepath.Join(dir, base+"_preview.jpg")
			if err := os.WriteFile(out, item.Result.Data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", out, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "%s\n%s\n\n", out, item.Result.Caption())
		}
	}
	return nil
}

func readImages(paths []string) ([]llm.Image, error) {
	images := make([]llm.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		images = append(images, llm.Image{Name: filepath.Base(p), Data: data, MIMEType: getMimeType(p)})
	}
	return images, nil
}

func getMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
