package submissions

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID tipe untuk Submission
type ID string

// Status enum
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
)

// Source tells which annotator produced the AI fields.
type Source string

const (
	SourcePending   Source = "pending"
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

// Placeholder is shown in every AI text field until the first pass lands.
const Placeholder = "Generating..."

const (
	MinRating = 1
	MaxRating = 5
)

// Submission is the aggregate root: one rating + review and its annotations.
type Submission struct {
	ID                    ID         `json:"id"`
	Rating                int        `json:"rating"`
	ReviewText            string     `json:"review_text"`
	Timestamp             time.Time  `json:"timestamp"`
	Status                Status     `json:"status"`
	AIResponse            string     `json:"ai_response"`
	AISummary             string     `json:"ai_summary"`
	AIRecommendedActions  string     `json:"ai_recommended_actions"`
	PredictedStars        *int       `json:"predicted_stars"`
	PredictionExplanation *string    `json:"prediction_explanation"`
	AnnotationSource      Source     `json:"annotation_source"`
	AnnotatedAt           *time.Time `json:"annotated_at"`
	RefinedAt             *time.Time `json:"refined_at"`
}

// New validates the input and builds a processing record with placeholders.
func New(rating int, reviewText string, now time.Time) (*Submission, error) {
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(reviewText)
	if text == "" {
		return nil, &ValidationError{Field: "review_text", Message: "review text must not be empty"}
	}
	return &Submission{
		ID:                   ID(uuid.New().String()),
		Rating:               rating,
		ReviewText:           text,
		Timestamp:            now.UTC(),
		Status:               StatusProcessing,
		AIResponse:           Placeholder,
		AISummary:            Placeholder,
		AIRecommendedActions: Placeholder,
		AnnotationSource:     SourcePending,
	}, nil
}

// ValidateRating checks the 1..5 star range.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	return nil
}

// Clone returns a deep copy so callers never share pointers with a store.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	c := *s
	if s.PredictedStars != nil {
		v := *s.PredictedStars
		c.PredictedStars = &v
	}
	if s.PredictionExplanation != nil {
		v := *s.PredictionExplanation
		c.PredictionExplanation = &v
	}
	if s.AnnotatedAt != nil {
		v := *s.AnnotatedAt
		c.AnnotatedAt = &v
	}
	if s.RefinedAt != nil {
		v := *s.RefinedAt
		c.RefinedAt = &v
	}
	return &c
}

// IsComplete reports whether the record reached its terminal state.
func (s *Submission) IsComplete() bool { return s.Status == StatusComplete }

// Comparison runs the reconciler against this record's prediction.
func (s *Submission) Comparison() Comparison {
	return Reconcile(s.Rating, s.PredictedStars)
}

// Prediction keeps predicted stars and their explanation together; a patch
// can only write both or neither.
type Prediction struct {
	Stars       int
	Explanation string
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	// ExpectStatus, when set, must match the stored status or the update
	// fails with ErrStaleUpdate.
	ExpectStatus *Status

	Status               *Status
	AIResponse           *string
	AISummary            *string
	AIRecommendedActions *string
	Prediction           *Prediction
	AnnotationSource     *Source
	AnnotatedAt          *time.Time
	RefinedAt            *time.Time
}

// Validate rejects patches that would break record invariants.
func (p Patch) Validate() error {
	if p.Status != nil && *p.Status != StatusProcessing && *p.Status != StatusComplete {
		return &ValidationError{Field: "status", Message: "unknown status " + string(*p.Status)}
	}
	if p.Prediction != nil {
		if p.Prediction.Stars < MinRating || p.Prediction.Stars > MaxRating {
			return &ValidationError{Field: "predicted_stars", Message: "predicted stars must be between 1 and 5"}
		}
	}
	return nil
}

// Apply merges the patch into s after checking the precondition. It never
// moves a complete record back to processing.
func (p Patch) Apply(s *Submission) error {
	if p.ExpectStatus != nil && s.Status != *p.ExpectStatus {
		return ErrStaleUpdate
	}
	if p.Status != nil {
		if s.Status == StatusComplete && *p.Status != StatusComplete {
			return ErrStaleUpdate
		}
		s.Status = *p.Status
	}
	if p.AIResponse != nil {
		s.AIResponse = *p.AIResponse
	}
	if p.AISummary != nil {
		s.AISummary = *p.AISummary
	}
	if p.AIRecommendedActions != nil {
		s.AIRecommendedActions = *p.AIRecommendedActions
	}
	if p.Prediction != nil {
		stars := p.Prediction.Stars
		expl := p.Prediction.Explanation
		s.PredictedStars = &stars
		s.PredictionExplanation = &expl
	}
	if p.AnnotationSource != nil {
		s.AnnotationSource = *p.AnnotationSource
	}
	if p.AnnotatedAt != nil {
		t := p.AnnotatedAt.UTC()
		s.AnnotatedAt = &t
	}
	if p.RefinedAt != nil {
		t := p.RefinedAt.UTC()
		s.RefinedAt = &t
	}
	return nil
}
