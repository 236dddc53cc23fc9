package middleware

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

// Input validation and sanitization utilities. Every failure is a
// *submissions.ValidationError so handlers can map it to 400.

const maxReviewBytes = 5000

// legacy ids look like sub_20240101120000_42
var legacyID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ParseRating parses an optional rating filter. Empty or "all" means any.
func ParseRating(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: "rating", Message: "must be an integer between 1 and 5"}
	}
	if err := domain.ValidateRating(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateDate checks YYYY-MM-DD or a full timestamp. Empty is allowed.
func ValidateDate(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return nil
		}
	}
	return &domain.ValidationError{Field: field, Message: "expected YYYY-MM-DD"}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02T15:04:05"}

// ValidateDateRange accepts the known relative windows.
func ValidateDateRange(raw string) (domain.DateRange, error) {
	switch r := domain.DateRange(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return "", nil
	case domain.RangeAll, domain.RangeWeek, domain.RangeMonth, domain.RangeYear, domain.RangeCustom:
		return r, nil
	default:
		return "", &domain.ValidationError{Field: "date_range", Message: "expected all, week, month, year or custom"}
	}
}

// ValidateSubmissionID accepts a uuid or an imported legacy id.
func ValidateSubmissionID(raw string) (domain.ID, error) {
	if raw == "" {
		return "", &domain.ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if _, err := uuid.Parse(raw); err == nil {
		return domain.ID(raw), nil
	}
	if !legacyID.MatchString(raw) {
		return "", &domain.ValidationError{Field: "id", Message: "invalid submission id format"}
	}
	return domain.ID(raw), nil
}

// ValidateReviewText caps the review size after sanitizing.
func ValidateReviewText(raw string) (string, error) {
	text := SanitizeString(raw)
	if len(text) > maxReviewBytes {
		return "", &domain.ValidationError{Field: "review_text", Message: "must be at most 5000 bytes"}
	}
	return text, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates list limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 50 // default
	}
	if limit > 500 {
		return 500
	}
	return limit
}
