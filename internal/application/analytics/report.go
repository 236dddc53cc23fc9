package analytics

import (
	"math"
	"strconv"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

// Report is the admin dashboard aggregate. Every field is always populated.
type Report struct {
	TotalReviews         int                  `json:"total_reviews"`
	AverageRating        float64              `json:"average_rating"`
	RatingDistribution   map[string]int       `json:"rating_distribution"`
	TrendsOverTime       Trends               `json:"trends_over_time"`
	RadarAnalysis        Radar                `json:"radar_analysis"`
	PredictionComparison PredictionComparison `json:"prediction_comparison"`
	PositiveReviews      int                  `json:"positive_reviews"`
	PositivePercentage   float64              `json:"positive_percentage"`
	// AIAccuracy is nil when no record has a prediction.
	AIAccuracy     *float64 `json:"ai_accuracy"`
	Insights       []string `json:"insights"`
	Degraded       bool     `json:"degraded"`
	DegradedReason string   `json:"degraded_reason,omitempty"`
}

// Trends holds parallel label/count arrays in chronological order.
type Trends struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Radar scores, each in [0,5].
type Radar struct {
	ServiceQuality      float64 `json:"service_quality"`
	FoodQuality         float64 `json:"food_quality"`
	ValueForMoney       float64 `json:"value_for_money"`
	Ambience            float64 `json:"ambience"`
	OverallSatisfaction float64 `json:"overall_satisfaction"`
	ResponseTime        float64 `json:"response_time"`
}

// PredictionComparison counts reconciler verdicts over records with a prediction.
type PredictionComparison struct {
	Matches  int `json:"matches"`
	AIHigher int `json:"ai_higher"`
	AILower  int `json:"ai_lower"`
}

// Stats is the short summary served on the stats endpoint.
type Stats struct {
	TotalReviews       int            `json:"total_reviews"`
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	Degraded           bool           `json:"degraded,omitempty"`
}

func emptyDistribution() map[string]int {
	d := make(map[string]int, domain.MaxRating)
	for r := domain.MinRating; r <= domain.MaxRating; r++ {
		d[strconv.Itoa(r)] = 0
	}
	return d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(5, v))
}

// named dimensions in display order
func (r Radar) dimensions() []struct {
	name  string
	value float64
} {
	return []struct {
		name  string
		value float64
	}{
		{"service quality", r.ServiceQuality},
		{"food quality", r.FoodQuality},
		{"value for money", r.ValueForMoney},
		{"ambience", r.Ambience},
		{"overall satisfaction", r.OverallSatisfaction},
		{"response time", r.ResponseTime},
	}
}
