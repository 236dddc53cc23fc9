package prompt

import (
	"strings"
	"testing"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
)

func TestParseAnnotation(t *testing.T) {
	raw := "Sure! Here you go:\n```json\n" + `{
  "ai_response": "Thanks for visiting",
  "ai_summary": "Customer liked **food**",
  "ai_recommended_actions": "1. Keep it up",
  "predicted_stars": "5",
  "prediction_explanation": "Very positive"
}` + "\n```"
	a, err := ParseAnnotation(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.PredictedStars != 5 || a.Response != "Thanks for visiting" || a.PredictionExplanation != "Very positive" {
		t.Fatalf("unexpected annotation: %+v", a)
	}
}

func TestParseAnnotationDefaultsExplanation(t *testing.T) {
	a, err := ParseAnnotation(`{"ai_response":"a","ai_summary":"b","ai_recommended_actions":"c","predicted_stars":2}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.PredictionExplanation == "" {
		t.Fatal("expected default explanation")
	}
}

func TestParseAnnotationRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not json":       "I cannot help with that.",
		"missing":        `{"ai_response":"a","ai_summary":"","ai_recommended_actions":"c","predicted_stars":3}`,
		"stars range":    `{"ai_response":"a","ai_summary":"b","ai_recommended_actions":"c","predicted_stars":9}`,
		"stars fraction": `{"ai_response":"a","ai_summary":"b","ai_recommended_actions":"c","predicted_stars":3.5}`,
		"stars missing":  `{"ai_response":"a","ai_summary":"b","ai_recommended_actions":"c"}`,
		"array":          `[1,2,3]`,
	}
	for name, raw := range cases {
		_, err := ParseAnnotation(raw)
		if ai.KindOf(err) != ai.FailureMalformed {
			t.Errorf("%s: expected malformed upstream error, got %v", name, err)
		}
	}
}

func TestParseRefinement(t *testing.T) {
	r, err := ParseRefinement(`{"ai_response":" better ","ai_summary":"s","ai_recommended_actions":"1. x"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Response != "better" {
		t.Fatalf("expected trimmed response, got %q", r.Response)
	}
	if _, err := ParseRefinement(`{"ai_response":"only"}`); err == nil {
		t.Fatal("expected error for partial refinement")
	}
}

func TestPredictStars(t *testing.T) {
	cases := []struct {
		rating int
		text   string
		want   int
	}{
		{5, "Amazing food, excellent staff, highly recommend!", 5},
		{1, "Terrible. Worst meal ever, never again.", 1},
		{4, "It was fine.", 4},
		{3, "Good food but slow service", 3},
		{2, "Nice place, friendly people", 3},
		{5, "Food was cold", 3},
		{9, "", 3},
	}
	for _, tc := range cases {
		if got := PredictStars(tc.rating, tc.text); got != tc.want {
			t.Errorf("PredictStars(%d, %q) = %d, want %d", tc.rating, tc.text, got, tc.want)
		}
	}
}

func TestAnalyzeReviewIsCompleteAndDeterministic(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		a := AnalyzeReview(rating, "The pasta was good but the waiter was rude")
		b := AnalyzeReview(rating, "The pasta was good but the waiter was rude")
		if a != b {
			t.Fatal("heuristic must be deterministic")
		}
		if a.Response == "" || a.Summary == "" || a.RecommendedActions == "" || a.PredictionExplanation == "" {
			t.Fatalf("incomplete annotation: %+v", a)
		}
		if a.PredictedStars < 1 || a.PredictedStars > 5 {
			t.Fatalf("stars out of range: %d", a.PredictedStars)
		}
	}
	neg := AnalyzeReview(5, "Awful, disgusting, never again")
	if !strings.Contains(neg.Summary, "negative") {
		t.Fatalf("expected negative tone, got %q", neg.Summary)
	}
}

func TestUserPromptCarriesInput(t *testing.T) {
	p := GetUserPrompt(4, "  Lovely brunch ")
	if !strings.Contains(p, "rating_given: 4") || !strings.Contains(p, `"Lovely brunch"`) {
		t.Fatalf("unexpected prompt: %s", p)
	}
}
