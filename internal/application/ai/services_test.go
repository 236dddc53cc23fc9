package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
)

type fakeClient struct {
	out  string
	err  error
	user string
}

func (f *fakeClient) Complete(_ context.Context, _, user string) (string, error) {
	f.user = user
	return f.out, f.err
}

func TestServiceAnnotate(t *testing.T) {
	fc := &fakeClient{out: `{"ai_response":"r","ai_summary":"s","ai_recommended_actions":"a","predicted_stars":4,"prediction_explanation":"e"}`}
	a, err := NewService(fc).Annotate(context.Background(), ai.Request{Rating: 4, ReviewText: "good"})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if a.PredictedStars != 4 || a.Response != "r" {
		t.Fatalf("unexpected annotation %+v", a)
	}
	if fc.user == "" {
		t.Fatal("client did not receive a prompt")
	}
}

func TestServiceClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		svc  *Service
		ctx  func() context.Context
		want ai.FailureKind
	}{
		{"transport", NewService(&fakeClient{err: errors.New("connection refused")}), context.Background, ai.FailureTransport},
		{"quota", NewService(&fakeClient{err: ai.ErrQuotaExceeded}), context.Background, ai.FailureQuota},
		{"malformed", NewService(&fakeClient{out: "sorry"}), context.Background, ai.FailureMalformed},
		{"disabled", NewService(nil), context.Background, ai.FailureDisabled},
		{"timeout", NewService(&fakeClient{err: context.DeadlineExceeded}), func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}, ai.FailureTimeout},
	}
	for _, tc := range cases {
		_, err := tc.svc.Annotate(tc.ctx(), ai.Request{Rating: 3, ReviewText: "ok"})
		if got := ai.KindOf(err); got != tc.want {
			t.Errorf("%s: expected %s, got %s (%v)", tc.name, tc.want, got, err)
		}
	}
}

func TestServiceRefine(t *testing.T) {
	fc := &fakeClient{out: `{"ai_response":"better","ai_summary":"s2","ai_recommended_actions":"a2"}`}
	r, err := NewService(fc).Refine(context.Background(), ai.Request{Rating: 2, ReviewText: "slow"},
		ai.Refinement{Response: "r", Summary: "s", RecommendedActions: "a"})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if r.Response != "better" {
		t.Fatalf("unexpected refinement %+v", r)
	}
}

func TestHeuristicNeverFails(t *testing.T) {
	a, err := Heuristic{}.Annotate(context.Background(), ai.Request{Rating: 1, ReviewText: "terrible"})
	if err != nil {
		t.Fatal(err)
	}
	if a.PredictedStars < 1 || a.PredictedStars > 5 || a.Response == "" {
		t.Fatalf("bad heuristic annotation %+v", a)
	}
}
