package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
)

const heuristicExplanation = "Prediction approximated from the text sentiment and the given rating."

// sentiment detectors; weights add up into a single score
var detectors = []struct {
	re     *regexp.Regexp
	weight int
}{
	// strong positive
	{regexp.MustCompile(`\b(amazing|excellent|outstanding|perfect|incredible|fantastic)\b`), 2},
	{regexp.MustCompile(`\blove(d|ly)?\b`), 2},
	{regexp.MustCompile(`highly recommend`), 2},
	// soft positive
	{regexp.MustCompile(`\b(good|tasty|fresh|nice|friendly|enjoyed|satisfied)\b`), 1},
	{regexp.MustCompile(`would (come|go) back`), 1},
	// strong negative
	{regexp.MustCompile(`\b(terrible|horrible|awful|worst|disgusting|ruined|unacceptable)\b`), -2},
	{regexp.MustCompile(`never (again|coming back)`), -2},
	// soft negative
	{regexp.MustCompile(`\b(bad|cold|slow|rude|disappointed|disappointing|overpriced)\b`), -1},
	{regexp.MustCompile(`not good`), -1},
}

// SentimentScore sums detector weights over the lower-cased text. Each
// detector counts once.
func SentimentScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, d := range detectors {
		if d.re.MatchString(lower) {
			score += d.weight
		}
	}
	return score
}

// PredictStars maps the text sentiment, anchored on the given rating, to 1..5.
func PredictStars(rating int, text string) int {
	base := rating
	if base < 1 || base > 5 {
		base = 3
	}
	if strings.TrimSpace(text) == "" {
		return base
	}
	score := SentimentScore(text)
	switch {
	case score >= 4:
		return 5
	case score == 3:
		return 4
	case score == 2:
		if base >= 4 {
			return 4
		}
		return 3
	case score == 1:
		if base <= 3 {
			return 3
		}
		return 4
	case score == 0:
		return base
	case score == -1:
		if base <= 3 {
			return 2
		}
		return 3
	default:
		return 1
	}
}

// AnalyzeReview builds a complete annotation without calling any model. The
// tone follows the predicted stars so a glowing text with a low rating (or the
// reverse) still gets a fitting reply. Output depends only on the input.
func AnalyzeReview(rating int, reviewText string) ai.Annotation {
	trim := func(s string, words int) string {
		parts := strings.Fields(s)
		if len(parts) == 0 {
			return ""
		}
		if len(parts) > words {
			parts = parts[:words]
		}
		out := strings.Join(parts, " ")
		if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
			out += "..."
		}
		return out
	}

	snippet := trim(reviewText, 18)
	quote := func(fallback string) string {
		if snippet == "" {
			return fallback
		}
		return snippet
	}

	stars := PredictStars(rating, reviewText)
	out := ai.Annotation{
		PredictedStars:        stars,
		PredictionExplanation: heuristicExplanation,
	}

	switch {
	case stars <= 2:
		out.Response = fmt.Sprintf("Thank you for telling us about your experience. We're truly sorry it fell short. "+
			"Feedback like '%s' is taken seriously and we'll work with our team to fix these issues. "+
			"We hope you'll give us another chance to make your next visit much better.", quote("your review"))
		out.Summary = fmt.Sprintf("Customer gave a %d-star rating and the review reads **negative**. Key issue: **%s**.",
			rating, quote("no clear details provided"))
		out.RecommendedActions = strings.Join([]string{
			"1. Investigate the specific problems mentioned and document the root causes.",
			"2. Coach the staff involved on service recovery, communication and quality standards.",
			"3. Follow up with the customer, explain the corrective steps, and offer a recovery gesture.",
		}, "\n")
	case stars == 3:
		out.Response = fmt.Sprintf("Thank you for the honest and balanced feedback. "+
			"You mentioned '%s', and we'll use this to improve. We hope your next visit feels even better.",
			quote("both positives and negatives"))
		out.Summary = fmt.Sprintf("Customer gave a %d-star rating and the review sounds **mixed**. Main points: **%s**.",
			rating, quote("no clear details provided"))
		out.RecommendedActions = strings.Join([]string{
			"1. Identify the main friction point (speed, consistency or communication) and trial a small process change.",
			"2. Share the strengths the customer liked with the team and keep them in standard procedures.",
			"3. Track ratings on similar reviews before and after the change to confirm it helps.",
		}, "\n")
	default:
		out.Response = fmt.Sprintf("Thank you for the wonderful review and the %d-star rating! "+
			"We're really happy you enjoyed your visit, especially '%s'. "+
			"We're grateful to have you and keep improving every day.", rating, quote("your kind words"))
		out.Summary = fmt.Sprintf("Customer gave a %d-star rating and the review reads **positive**. Key praise: **%s**.",
			rating, quote("no extra details provided"))
		out.RecommendedActions = strings.Join([]string{
			"1. Share this review with the team and recognize the people or shifts involved.",
			"2. Turn what went well into checklists for every shift.",
			"3. Invite similarly satisfied guests to leave their own reviews.",
		}, "\n")
	}
	return out
}
