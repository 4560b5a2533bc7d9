package analysis

// MaxScore is the top of the design score scale.
const MaxScore = 10.0

// Score is one axis of the design score chart.
type Score struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// PlaceholderScores returns fixed illustrative values. They are not derived
// from the model output and the dashboard labels them as such.
func PlaceholderScores() []Score {
	return []Score{
		{Metric: "Visual Hierarchy", Value: 8.5},
		{Metric: "Color Harmony", Value: 7.8},
		{Metric: "Typography", Value: 8.2},
		{Metric: "Layout", Value: 7.9},
		{Metric: "Brand Consistency", Value: 8.0},
	}
}
