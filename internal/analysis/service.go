package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/raine/ai-design-team/internal/llm"
	"github.com/rs/zerolog/log"
)

var ErrNoDesignFiles = errors.New("no design files to analyze")

// Section is the critique produced for one category, or its failure.
type Section struct {
	Category Category  `json:"category,omitempty"`
	Title    string    `json:"title"`
	Text     string    `json:"text,omitempty"`
	Error    string    `json:"error,omitempty"`
	Usage    llm.Usage `json:"usage"`
	Cached   bool      `json:"cached,omitempty"`
}

func (s Section) Failed() bool {
	return s.Error != ""
}

// Report is the outcome of one analysis run.
type Report struct {
	Sections    []Section        `json:"sections"`
	SocialPosts *llm.SocialPosts `json:"socialPosts,omitempty"`
	Synthesis   *Section         `json:"synthesis,omitempty"`
	Scores      []Score          `json:"scores,omitempty"`
	Usage       llm.Usage        `json:"usage"`
}

// Section returns the section for c, if that category ran.
func (r *Report) Section(c Category) (Section, bool) {
	for _, s := range r.Sections {
		if s.Category == c {
			return s, true
		}
	}
	return Section{}, false
}

const synthesisTitle = "🔍 Key Takeaways"

// Service runs analysis requests against a model.
type Service struct {
	gen llm.Generator
}

func NewService(gen llm.Generator) *Service {
	return &Service{gen: gen}
}

// Run executes the selected categories one after another in the fixed order
// Visual Design, User Experience, Market Analysis. A failed category is
// recorded on its section and the run continues. Social posts follow a
// successful visual critique; a synthesis follows when more than one category
// was selected. tracker and onProgress may be nil.
func (s *Service) Run(ctx context.Context, req Request, tracker *Tracker, onProgress ProgressFunc) (*Report, error) {
	if len(req.Designs) == 0 {
		return nil, ErrNoDesignFiles
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	tracker.Reset()

	images := req.Images()
	focus := stringsOf(req.FocusAreas)
	report := &Report{Sections: []Section{}}

	update := func(c Category, status AgentStatus, progress int) {
		state := tracker.Set(c, status, progress)
		if onProgress != nil {
			onProgress(c, state)
		}
	}

	for _, c := range AllCategories {
		if !req.Has(c) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		update(c, StatusProcessing, progressStarted)

		section := Section{Category: c, Title: c.Title()}
		result, err := s.gen.Generate(ctx, c.prompt(focus, req.Context), images)
		if err != nil {
			log.Error().Err(err).Str("category", string(c)).Msg("analysis call failed")
			section.Error = err.Error()
			report.Sections = append(report.Sections, section)
			update(c, StatusFailed, progressFinished)
			continue
		}

		section.Text = result.Text
		section.Usage = result.Usage
		section.Cached = result.Cached
		report.Usage.Add(result.Usage)

		if c == CategoryVisual {
			posts := s.socialPosts(ctx, result.Text, req.Context, &report.Usage)
			report.SocialPosts = &posts
			report.Scores = PlaceholderScores()
		}

		report.Sections = append(report.Sections, section)
		update(c, StatusComplete, progressFinished)
	}

	if len(req.Categories) > 1 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Synthesis = s.synthesis(ctx, req, images)
		report.Usage.Add(report.Synthesis.Usage)
	}

	log.Info().
		Int("designCount", len(req.Designs)).
		Int("competitorCount", len(req.Competitors)).
		Int("categoryCount", len(req.Categories)).
		Int64("totalTokens", report.Usage.TotalTokens).
		Float64("costUSD", report.Usage.CostUSD).
		Msg("analysis complete")

	return report, nil
}

// socialPosts is a text-only call that uses the visual critique as the design
// description. Failures never fail the run.
func (s *Service) socialPosts(ctx context.Context, description, designContext string, total *llm.Usage) llm.SocialPosts {
	result, err := s.gen.Generate(ctx, llm.SocialPostsPrompt(description, designContext), nil)
	if err != nil {
		log.Warn().Err(err).Msg("social posts call failed")
		posts := llm.ExtractSocialPosts("")
		posts.Err = err
		return posts
	}
	total.Add(result.Usage)

	posts := llm.ExtractSocialPosts(result.Text)
	if posts.Fallback() {
		log.Warn().Err(posts.Err).Msg("failed to parse social posts, using fallback")
	}
	return posts
}

func (s *Service) synthesis(ctx context.Context, req Request, images []llm.Image) *Section {
	section := &Section{Title: synthesisTitle}

	result, err := s.gen.Generate(ctx, llm.SynthesisPrompt(stringsOf(req.Categories), req.Context), images)
	if err != nil {
		log.Error().Err(err).Msg("synthesis call failed")
		section.Error = fmt.Sprintf("synthesis failed: %v", err)
		return section
	}

	section.Text = result.Text
	section.Usage = result.Usage
	section.Cached = result.Cached
	return section
}
