package submissions

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Verdict of comparing a predicted rating with the user's rating.
type Verdict string

const (
	VerdictNeutral     Verdict = "neutral"
	VerdictMatch       Verdict = "match"
	VerdictImprovement Verdict = "improvement"
	VerdictConcern     Verdict = "concern"
)

// Comparison value object
type Comparison struct {
	Status Verdict `json:"status"`
	Diff   int     `json:"diff"`
}

// Reconcile compares predicted against actual. A missing or out-of-range
// prediction, or an out-of-range actual rating, yields neutral. It has no
// side effects and is safe to call from many goroutines.
func Reconcile(actual int, predicted *int) Comparison {
	if predicted == nil || !inRange(*predicted) || !inRange(actual) {
		return Comparison{Status: VerdictNeutral}
	}
	diff := *predicted - actual
	switch {
	case diff > 0:
		return Comparison{Status: VerdictImprovement, Diff: diff}
	case diff < 0:
		return Comparison{Status: VerdictConcern, Diff: diff}
	default:
		return Comparison{Status: VerdictMatch}
	}
}

// NormalizeStars turns a loosely typed value (as decoded from model output)
// into a star rating. Anything non-numeric, fractional or outside 1..5 is
// rejected.
func NormalizeStars(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	case float32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	n := int(f)
	if !inRange(n) {
		return 0, false
	}
	return n, true
}

func inRange(n int) bool { return n >= MinRating && n <= MaxRating }
