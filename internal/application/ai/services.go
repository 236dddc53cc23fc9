package ai

import (
	"context"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
	"github.com/bryanwahyu/feedback-ai/internal/infra/ai/prompt"
)

// Service is the AI-backed annotator and refiner.
type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Annotate makes exactly one model call and validates the reply.
func (s *Service) Annotate(ctx context.Context, req ai.Request) (ai.Annotation, error) {
	if s == nil || s.client == nil {
		return ai.Annotation{}, ai.Classify(ai.FailureDisabled, ai.ErrNotConfigured)
	}
	raw, err := s.client.Complete(ctx, prompt.GetSystemPrompt(), prompt.GetUserPrompt(req.Rating, req.ReviewText))
	if err != nil {
		return ai.Annotation{}, ai.Classify(kindFor(ctx), err)
	}
	return prompt.ParseAnnotation(raw)
}

// Refine asks the model to improve the current text fields.
func (s *Service) Refine(ctx context.Context, req ai.Request, current ai.Refinement) (ai.Refinement, error) {
	if s == nil || s.client == nil {
		return ai.Refinement{}, ai.Classify(ai.FailureDisabled, ai.ErrNotConfigured)
	}
	user := prompt.GetRefineUserPrompt(req.Rating, req.ReviewText, current.Response, current.Summary, current.RecommendedActions)
	raw, err := s.client.Complete(ctx, prompt.GetRefineSystemPrompt(), user)
	if err != nil {
		return ai.Refinement{}, ai.Classify(kindFor(ctx), err)
	}
	return prompt.ParseRefinement(raw)
}

func kindFor(ctx context.Context) ai.FailureKind {
	if ctx.Err() != nil {
		return ai.FailureTimeout
	}
	return ai.FailureTransport
}

// Heuristic annotates from keyword sentiment only. It never fails.
type Heuristic struct{}

func (Heuristic) Annotate(_ context.Context, req ai.Request) (ai.Annotation, error) {
	return prompt.AnalyzeReview(req.Rating, req.ReviewText), nil
}
