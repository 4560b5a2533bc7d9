package llm

import "context"

// Image is an uploaded image sent to the model as inline data.
type Image struct {
	Name     string
	Data     []byte
	MIMEType string
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	CostUSD      float64 `json:"costUSD"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
}

// Result is the text returned by one model call.
type Result struct {
	Text   string
	Usage  Usage
	Cached bool
}

// Generator sends a text prompt followed by zero or more images to a model.
type Generator interface {
	Generate(ctx context.Context, prompt string, images []Image) (*Result, error)
}
