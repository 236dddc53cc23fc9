package analytics

import (
	"fmt"
	"math"
	"strconv"
	"time"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

const (
	defaultTrendDays = 7
	// windows longer than this are bucketed by month
	maxDayBuckets = 62

	insightEmpty = "No reviews found for the selected filters. Try adjusting your filters or submit more reviews."
	insightNone  = "No significant insights at this time."
)

// Engine computes analytics. It is stateless and safe for concurrent use.
type Engine struct {
	Radar    RadarScorer
	Location *time.Location
}

func NewEngine(radar RadarScorer, loc *time.Location) *Engine {
	if radar == nil {
		radar = KeywordRadar{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{Radar: radar, Location: loc}
}

// Compute aggregates the records matching c. An empty set yields a zeroed
// report, never an error.
func (e *Engine) Compute(subs []*domain.Submission, c domain.Criteria, now time.Time) Report {
	subs = rated(domain.Apply(subs, c))
	loc := e.loc()

	r := Report{
		RatingDistribution: emptyDistribution(),
		TrendsOverTime:     trends(subs, c, now, loc),
		Insights:           []string{},
	}
	if len(subs) == 0 {
		r.Insights = []string{insightEmpty}
		return r
	}

	sum := 0
	for _, s := range subs {
		sum += s.Rating
		r.RatingDistribution[strconv.Itoa(s.Rating)]++
		if s.Rating >= 4 {
			r.PositiveReviews++
		}
	}
	r.TotalReviews = len(subs)
	avg := float64(sum) / float64(r.TotalReviews)
	r.AverageRating = round(avg, 2)
	positivePct := float64(r.PositiveReviews) / float64(r.TotalReviews) * 100
	r.PositivePercentage = round(positivePct, 1)

	predicted := 0
	for _, s := range subs {
		switch s.Comparison().Status {
		case domain.VerdictMatch:
			r.PredictionComparison.Matches++
		case domain.VerdictImprovement:
			r.PredictionComparison.AIHigher++
		case domain.VerdictConcern:
			r.PredictionComparison.AILower++
		default:
			continue
		}
		predicted++
	}
	var accuracy float64
	if predicted > 0 {
		accuracy = round(float64(r.PredictionComparison.Matches)/float64(predicted)*100, 1)
		r.AIAccuracy = &accuracy
	}

	if e.Radar != nil {
		r.RadarAnalysis = e.Radar.Score(subs)
	}
	r.Insights = insights(r, avg, positivePct)
	return r
}

// Stats is the short summary over subs.
func (e *Engine) Stats(subs []*domain.Submission) Stats {
	st := Stats{RatingDistribution: emptyDistribution()}
	subs = rated(subs)
	if len(subs) == 0 {
		return st
	}
	sum := 0
	for _, s := range subs {
		sum += s.Rating
		st.RatingDistribution[strconv.Itoa(s.Rating)]++
	}
	st.TotalReviews = len(subs)
	st.AverageRating = round(float64(sum)/float64(len(subs)), 2)
	return st
}

// Degraded is the zeroed report served when the store cannot be read.
func (e *Engine) Degraded(c domain.Criteria, now time.Time, reason error) Report {
	r := e.Compute(nil, c, now)
	r.Degraded = true
	r.DegradedReason = "submission store unavailable"
	if reason != nil {
		r.DegradedReason = fmt.Sprintf("submission store unavailable: %v", reason)
	}
	r.Insights = []string{"Analytics are temporarily unavailable. Showing an empty report."}
	return r
}

// rated drops records whose rating is outside 1..5 (hand-edited files).
func rated(subs []*domain.Submission) []*domain.Submission {
	out := subs[:0:0]
	for _, s := range subs {
		if s != nil && domain.ValidateRating(s.Rating) == nil {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// trends buckets subs over the criteria window, or the last 7 days when the
// criteria have no lower bound.
func trends(subs []*domain.Submission, c domain.Criteria, now time.Time, loc *time.Location) Trends {
	end := now.In(loc)
	if !c.Before.IsZero() && c.Before.Before(now) {
		end = c.Before.Add(-time.Nanosecond).In(loc)
	}
	lastDay := startOfDay(end)
	firstDay := lastDay.AddDate(0, 0, -(defaultTrendDays - 1))
	if !c.From.IsZero() {
		firstDay = startOfDay(c.From.In(loc))
	}
	if firstDay.After(lastDay) {
		firstDay = lastDay
	}

	days := int(math.Round(lastDay.Sub(firstDay).Hours()/24)) + 1
	if days <= maxDayBuckets {
		return bucket(subs, loc, "2006-01-02", firstDay, func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }, lastDay)
	}
	firstMonth := time.Date(firstDay.Year(), firstDay.Month(), 1, 0, 0, 0, 0, loc)
	lastMonth := time.Date(lastDay.Year(), lastDay.Month(), 1, 0, 0, 0, 0, loc)
	return bucket(subs, loc, "2006-01", firstMonth, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }, lastMonth)
}

func bucket(subs []*domain.Submission, loc *time.Location, layout string, first time.Time, next func(time.Time) time.Time, last time.Time) Trends {
	t := Trends{Labels: []string{}, Data: []int{}}
	pos := map[string]int{}
	for b := first; !b.After(last); b = next(b) {
		label := b.Format(layout)
		pos[label] = len(t.Labels)
		t.Labels = append(t.Labels, label)
		t.Data = append(t.Data, 0)
	}
	for _, s := range subs {
		if i, ok := pos[s.Timestamp.In(loc).Format(layout)]; ok {
			t.Data[i]++
		}
	}
	return t
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// insights are derived from the aggregates only, so the same inputs always
// give the same list.
func insights(r Report, avg, positivePct float64) []string {
	var out []string
	if avg < 3 {
		out = append(out, "Average rating is below 3 stars. Immediate action required to improve customer satisfaction.")
	}
	if positivePct < 50 {
		out = append(out, "Less than 50% of reviews are positive. Focus on addressing common complaints.")
	}
	if r.AIAccuracy != nil {
		switch {
		case *r.AIAccuracy > 80:
			out = append(out, "AI prediction accuracy is excellent. The system is performing well.")
		case *r.AIAccuracy < 60:
			out = append(out, "AI prediction accuracy needs improvement. Consider reviewing the prediction model.")
		}
	}
	if float64(r.RatingDistribution["1"]) > float64(r.TotalReviews)*0.2 {
		out = append(out, "High number of 1-star reviews detected. Urgent intervention needed.")
	}
	if d := r.TrendsOverTime.Data; len(d) > 1 && d[0] > 0 && float64(d[len(d)-1]) > float64(d[0])*1.5 {
		out = append(out, "Review volume is increasing. Great opportunity to gather more feedback.")
	}
	weakest, score := "", 0.0
	for _, dim := range r.RadarAnalysis.dimensions() {
		if dim.value > 0 && (weakest == "" || dim.value < score) {
			weakest, score = dim.name, dim.value
		}
	}
	if weakest != "" && score < 3 {
		out = append(out, fmt.Sprintf("Lowest scoring dimension is %s (%.1f/5). Prioritize improvements there.", weakest, score))
	}
	if len(out) == 0 {
		out = append(out, insightNone)
	}
	return out
}
