package analysis

import (
	"github.com/raine/ai-design-team/internal/llm"
)

// Category is one kind of design critique.
type Category string

const (
	CategoryVisual Category = "Visual Design"
	CategoryUX     Category = "User Experience"
	CategoryMarket Category = "Market Analysis"
)

// AllCategories is also the order in which categories run.
var AllCategories = []Category{CategoryVisual, CategoryUX, CategoryMarket}

var DefaultCategories = []Category{CategoryVisual}

// AgentKey names the agent that produces the category.
func (c Category) AgentKey() string {
	switch c {
	case CategoryVisual:
		return "vision"
	case CategoryUX:
		return "ux"
	case CategoryMarket:
		return "market"
	}
	return ""
}

// Title is the section heading shown above the category's critique.
func (c Category) Title() string {
	switch c {
	case CategoryVisual:
		return "🎨 Visual Design Analysis"
	case CategoryUX:
		return "🔄 User Experience Analysis"
	case CategoryMarket:
		return "📊 Market Analysis"
	}
	return string(c)
}

func (c Category) prompt(focusAreas []string, context string) string {
	switch c {
	case CategoryUX:
		return llm.UXPrompt(focusAreas, context)
	case CategoryMarket:
		return llm.MarketPrompt(focusAreas, context)
	default:
		return llm.VisionPrompt(focusAreas, context)
	}
}

// FocusArea narrows what the critiques concentrate on.
type FocusArea string

const (
	FocusColorScheme   FocusArea = "Color Scheme"
	FocusTypography    FocusArea = "Typography"
	FocusLayout        FocusArea = "Layout"
	FocusNavigation    FocusArea = "Navigation"
	FocusInteractions  FocusArea = "Interactions"
	FocusAccessibility FocusArea = "Accessibility"
	FocusBranding      FocusArea = "Branding"
	FocusMarketFit     FocusArea = "Market Fit"
)

var AllFocusAreas = []FocusArea{
	FocusColorScheme, FocusTypography, FocusLayout, FocusNavigation,
	FocusInteractions, FocusAccessibility, FocusBranding, FocusMarketFit,
}

var DefaultFocusAreas = []FocusArea{FocusColorScheme, FocusLayout}

// ParseCategories keeps known values in the order given, dropping unknown
// values and duplicates.
func ParseCategories(values []string) []Category {
	return parseChoices(values, AllCategories)
}

// ParseFocusAreas keeps known values in the order given, dropping unknown
// values and duplicates.
func ParseFocusAreas(values []string) []FocusArea {
	return parseChoices(values, AllFocusAreas)
}

func parseChoices[T ~string](values []string, allowed []T) []T {
	known := make(map[string]T, len(allowed))
	for _, a := range allowed {
		known[string(a)] = a
	}

	out := []T{}
	seen := make(map[T]bool)
	for _, v := range values {
		choice, ok := known[v]
		if !ok || seen[choice] {
			continue
		}
		seen[choice] = true
		out = append(out, choice)
	}
	return out
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// Request is one submitted analysis. It is not modified once a run starts.
type Request struct {
	Designs     []llm.Image
	Competitors []llm.Image
	Categories  []Category
	FocusAreas  []FocusArea
	Context     string
}

// Images returns the design images followed by the competitor images.
func (r Request) Images() []llm.Image {
	images := make([]llm.Image, 0, len(r.Designs)+len(r.Competitors))
	images = append(images, r.Designs...)
	return append(images, r.Competitors...)
}

// Has reports whether the category was selected.
func (r Request) Has(c Category) bool {
	for _, sel := range r.Categories {
		if sel == c {
			return true
		}
	}
	return false
}
