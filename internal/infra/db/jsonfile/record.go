package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
)

// fileRecord is the on-disk shape. It is looser than domain.Submission so
// files written by the older backend (naive timestamps, "completed",
// stars as strings) still load.
type fileRecord struct {
	ID                    string  `json:"id"`
	Rating                any     `json:"rating"`
	ReviewText            string  `json:"review_text"`
	Timestamp             string  `json:"timestamp"`
	Status                string  `json:"status"`
	AIResponse            *string `json:"ai_response"`
	AISummary             *string `json:"ai_summary"`
	AIRecommendedActions  *string `json:"ai_recommended_actions"`
	PredictedStars        any     `json:"predicted_stars"`
	PredictionExplanation *string `json:"prediction_explanation"`
	AnnotationSource      string  `json:"annotation_source"`
	AnnotatedAt           *string `json:"annotated_at"`
	RefinedAt             *string `json:"refined_at"`
}

// naive layouts carry no offset; they are read in the store's location.
// Fractional seconds are accepted after the seconds field.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func optionalTime(raw *string, loc *time.Location) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := parseTime(*raw, loc)
	if err != nil {
		return nil
	}
	return &t
}

func parseStatus(raw string) (domain.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "complete", "completed":
		return domain.StatusComplete, true
	case "", "processing", "pending":
		return domain.StatusProcessing, true
	}
	return "", false
}

func textOr(v *string, status domain.Status) string {
	if v != nil {
		return *v
	}
	if status == domain.StatusProcessing {
		return domain.Placeholder
	}
	return ""
}

func (f fileRecord) submission(loc *time.Location) (*domain.Submission, error) {
	if strings.TrimSpace(f.ID) == "" {
		return nil, fmt.Errorf("missing id")
	}
	rating, ok := domain.NormalizeStars(f.Rating)
	if !ok {
		return nil, fmt.Errorf("invalid rating %v", f.Rating)
	}
	if strings.TrimSpace(f.ReviewText) == "" {
		return nil, fmt.Errorf("empty review_text")
	}
	ts, err := parseTime(f.Timestamp, loc)
	if err != nil {
		return nil, err
	}
	status, ok := parseStatus(f.Status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", f.Status)
	}

	s := &domain.Submission{
		ID:                   domain.ID(f.ID),
		Rating:               rating,
		ReviewText:           f.ReviewText,
		Timestamp:            ts.UTC(),
		Status:               status,
		AIResponse:           textOr(f.AIResponse, status),
		AISummary:            textOr(f.AISummary, status),
		AIRecommendedActions: textOr(f.AIRecommendedActions, status),
		AnnotationSource:     domain.Source(f.AnnotationSource),
		AnnotatedAt:          optionalTime(f.AnnotatedAt, loc),
		RefinedAt:            optionalTime(f.RefinedAt, loc),
	}
	if stars, ok := domain.NormalizeStars(f.PredictedStars); ok {
		explanation := ""
		if f.PredictionExplanation != nil {
			explanation = *f.PredictionExplanation
		}
		s.PredictedStars, s.PredictionExplanation = &stars, &explanation
	}
	if s.AnnotationSource == "" {
		s.AnnotationSource = domain.SourcePending
		if status == domain.StatusComplete {
			s.AnnotationSource = domain.SourceAI
		}
	}
	return s, nil
}

// decode accepts a bare array or an object with a "submissions" array.
// Records that cannot be read are skipped with a warning.
func decode(data []byte, loc *time.Location) ([]*domain.Submission, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var raws []json.RawMessage
	if data[0] == '{' {
		var wrapped struct {
			Submissions []json.RawMessage `json:"submissions"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		raws = wrapped.Submissions
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}

	out := make([]*domain.Submission, 0, len(raws))
	for i, raw := range raws {
		var rec fileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.WithError(err).WithField("index", i).Warn("skipping unreadable submission record")
			continue
		}
		s, err := rec.submission(loc)
		if err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{"index": i, "id": rec.ID}).
				Warn("skipping invalid submission record")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
