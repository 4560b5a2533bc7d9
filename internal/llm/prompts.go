package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

const visionPromptTemplate = `
	Analyze these designs as a visual design expert:
	Focus areas: %s
	Context: %s

	Provide detailed analysis of:
	1. Visual hierarchy and composition
	2. Color usage and harmony
	3. Typography choices and readability
	4. Layout effectiveness
	5. Brand consistency

	Also provide a brief description of the design for social media purposes.

	Format the response in clear sections with bullet points.
`

const uxPromptTemplate = `
	Analyze these designs as a UX expert:
	Focus areas: %s
	Context: %s

	Evaluate:
	1. User flow and navigation
	2. Interaction patterns
	3. Accessibility considerations
	4. Usability issues and improvements
	5. Information architecture

	Format the response in clear sections with bullet points.
`

const marketPromptTemplate = `
	Analyze these designs from a market perspective:
	Focus areas: %s
	Context: %s

	Provide insights on:
	1. Market positioning
	2. Competitive advantages
	3. Industry trends alignment
	4. Target audience fit
	5. Market opportunities

	Format the response in clear sections with bullet points.
`

const socialPostsPromptTemplate = `
	Based on this design/image description:
	%s

	Context: %s

	Generate engaging social media posts:
	1. Create a punchy Twitter/X post (max 280 characters) with relevant hashtags. Make it attention-grabbing and include 2-3 relevant hashtags.
	2. Write a professional LinkedIn post (2-3 paragraphs) that:
	   - Highlights the design's business value
	   - Includes relevant industry insights
	   - Ends with a clear call to action
	   - Uses appropriate professional tone

	Format the response as a JSON with two keys: 'twitter' and 'linkedin'
	Ensure the Twitter post is within character limit and hashtags are relevant.
`

const synthesisPromptTemplate = `
	Synthesize the key insights from all analyses:
	Analysis types: %s
	Context: %s

	Provide:
	1. Top 3 strengths
	2. Top 3 improvement opportunities
	3. Strategic recommendations

	Keep it concise and actionable.
`

// formatPrompt dedents a template before substituting values so that
// multi-line arguments keep their own indentation.
func formatPrompt(template string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(template)), a...)
}

func VisionPrompt(focusAreas []string, context string) string {
	return formatPrompt(visionPromptTemplate, strings.Join(focusAreas, ", "), context)
}

func UXPrompt(focusAreas []string, context string) string {
	return formatPrompt(uxPromptTemplate, strings.Join(focusAreas, ", "), context)
}

func MarketPrompt(focusAreas []string, context string) string {
	return formatPrompt(marketPromptTemplate, strings.Join(focusAreas, ", "), context)
}

// SocialPostsPrompt asks for a JSON object with "twitter" and "linkedin" keys,
// using the visual analysis text as the design description.
func SocialPostsPrompt(description, context string) string {
	return formatPrompt(socialPostsPromptTemplate, description, context)
}

func SynthesisPrompt(analysisTypes []string, context string) string {
	return formatPrompt(synthesisPromptTemplate, strings.Join(analysisTypes, ", "), context)
}
