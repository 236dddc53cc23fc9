package analytics

import (
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

// RadarScorer derives dimensional scores from a set of records. Records carry
// no structured sub-ratings, so every strategy works from rating and text.
type RadarScorer interface {
	Score(subs []*domain.Submission) Radar
}

// NewRadarScorer returns the named strategy; unknown names get keyword.
func NewRadarScorer(name string) RadarScorer {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "offset":
		return OffsetRadar{}
	default:
		return KeywordRadar{}
	}
}

// OffsetRadar shifts the average rating by a fixed amount per dimension.
type OffsetRadar struct{}

func (OffsetRadar) Score(subs []*domain.Submission) Radar {
	if len(subs) == 0 {
		return Radar{}
	}
	sum := 0
	for _, s := range subs {
		sum += s.Rating
	}
	avg := float64(sum) / float64(len(subs))
	return Radar{
		ServiceQuality:      round(clamp(avg+0.3), 2),
		FoodQuality:         round(clamp(avg+0.2), 2),
		ValueForMoney:       round(clamp(avg-0.1), 2),
		Ambience:            round(clamp(avg+0.1), 2),
		OverallSatisfaction: round(clamp(avg), 2),
		ResponseTime:        round(clamp(avg+0.4), 2),
	}
}

// KeywordRadar averages the ratings of the reviews that talk about each
// dimension. A dimension nobody mentions stays at zero.
type KeywordRadar struct{}

var radarLexicon = struct {
	service, food, value, ambience, response *regexp.Regexp
}{
	service:  regexp.MustCompile(`\b(service|staff|waiter|waitress|server|friendly|rude|attentive|host)\b`),
	food:     regexp.MustCompile(`\b(food|meal|dish|dishes|taste|tasty|flavou?r|pasta|pizza|soup|dessert|menu|cold|fresh)\b`),
	value:    regexp.MustCompile(`\b(price|prices|priced|overpriced|expensive|cheap|value|worth|portion|portions)\b`),
	ambience: regexp.MustCompile(`\b(ambien(ce|t)|atmosphere|music|decor|noisy|loud|cozy|cosy|clean|dirty)\b`),
	response: regexp.MustCompile(`\b(wait|waited|waiting|slow|quick|fast|prompt|delay|delayed|minutes)\b`),
}

func (KeywordRadar) Score(subs []*domain.Submission) Radar {
	type acc struct {
		sum, n int
	}
	var service, food, value, ambience, response, overall acc
	add := func(a *acc, rating int) {
		a.sum += rating
		a.n++
	}
	for _, s := range subs {
		text := strings.ToLower(s.ReviewText)
		add(&overall, s.Rating)
		if radarLexicon.service.MatchString(text) {
			add(&service, s.Rating)
		}
		if radarLexicon.food.MatchString(text) {
			add(&food, s.Rating)
		}
		if radarLexicon.value.MatchString(text) {
			add(&value, s.Rating)
		}
		if radarLexicon.ambience.MatchString(text) {
			add(&ambience, s.Rating)
		}
		if radarLexicon.response.MatchString(text) {
			add(&response, s.Rating)
		}
	}
	avg := func(a acc) float64 {
		if a.n == 0 {
			return 0
		}
		return round(clamp(float64(a.sum)/float64(a.n)), 2)
	}
	return Radar{
		ServiceQuality:      avg(service),
		FoodQuality:         avg(food),
		ValueForMoney:       avg(value),
		Ambience:            avg(ambience),
		OverallSatisfaction: avg(overall),
		ResponseTime:        avg(response),
	}
}
