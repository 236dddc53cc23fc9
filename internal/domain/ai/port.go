package ai

import "context"

// Client is the raw generative model: one system prompt and one user prompt
// in, the model's text out.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Request is what an annotator sees of a submission.
type Request struct {
	Rating     int
	ReviewText string
}

// Annotation is the full output of a first annotation pass.
type Annotation struct {
	Response              string `json:"ai_response"`
	Summary               string `json:"ai_summary"`
	RecommendedActions    string `json:"ai_recommended_actions"`
	PredictedStars        int    `json:"predicted_stars"`
	PredictionExplanation string `json:"prediction_explanation"`
}

// Refinement carries the text fields a background pass may improve.
type Refinement struct {
	Response           string `json:"ai_response"`
	Summary            string `json:"ai_summary"`
	RecommendedActions string `json:"ai_recommended_actions"`
}

// Annotator produces an Annotation. There are two strategies: the AI-backed
// one and the deterministic heuristic.
type Annotator interface {
	Annotate(ctx context.Context, req Request) (Annotation, error)
}

// Refiner rewrites the text fields of an annotated submission.
type Refiner interface {
	Refine(ctx context.Context, req Request, current Refinement) (Refinement, error)
}
