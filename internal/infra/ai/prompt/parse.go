package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
	"github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

const defaultExplanation = "AI prediction"

var (
	errNoJSON        = errors.New("no JSON object in model output")
	errMissingFields = errors.New("model output is missing required fields")
	errBadStars      = errors.New("model output has no valid predicted_stars")

	jsonBlock = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractJSON decodes the first JSON object in raw. It tries the whole text
// first, then the outermost {...} block (models like to wrap JSON in prose or
// code fences).
func ExtractJSON(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, errNoJSON
	}
	if obj, ok := decodeObject(cleaned); ok {
		return obj, nil
	}
	candidate := jsonBlock.FindString(cleaned)
	if candidate == "" {
		return nil, errNoJSON
	}
	if obj, ok := decodeObject(candidate); ok {
		return obj, nil
	}
	return nil, errNoJSON
}

func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ParseAnnotation validates a first-pass model reply. Every text field must be
// present and non-blank and predicted_stars must normalize to 1..5; anything
// else is a malformed reply.
func ParseAnnotation(raw string) (ai.Annotation, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return ai.Annotation{}, ai.Classify(ai.FailureMalformed, err)
	}
	a := ai.Annotation{
		Response:              field(obj, "ai_response"),
		Summary:               field(obj, "ai_summary"),
		RecommendedActions:    field(obj, "ai_recommended_actions"),
		PredictionExplanation: field(obj, "prediction_explanation"),
	}
	if a.Response == "" || a.Summary == "" || a.RecommendedActions == "" {
		return ai.Annotation{}, ai.Classify(ai.FailureMalformed, errMissingFields)
	}
	stars, ok := submissions.NormalizeStars(obj["predicted_stars"])
	if !ok {
		return ai.Annotation{}, ai.Classify(ai.FailureMalformed, fmt.Errorf("%w: %v", errBadStars, obj["predicted_stars"]))
	}
	a.PredictedStars = stars
	if a.PredictionExplanation == "" {
		a.PredictionExplanation = defaultExplanation
	}
	return a, nil
}

// ParseRefinement validates a refinement reply.
func ParseRefinement(raw string) (ai.Refinement, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return ai.Refinement{}, ai.Classify(ai.FailureMalformed, err)
	}
	r := ai.Refinement{
		Response:           field(obj, "ai_response"),
		Summary:            field(obj, "ai_summary"),
		RecommendedActions: field(obj, "ai_recommended_actions"),
	}
	if r.Response == "" || r.Summary == "" || r.RecommendedActions == "" {
		return ai.Refinement{}, ai.Classify(ai.FailureMalformed, errMissingFields)
	}
	return r, nil
}

// field reads a string value; numbers are accepted, other types count as absent.
func field(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
