package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNotConfigured is returned when no model/API key is available.
var ErrNotConfigured = errors.New("ai client not configured")

// FailureKind classifies upstream failures for logs and metrics.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureQuota     FailureKind = "quota"
	FailureMalformed FailureKind = "malformed"
	FailureDisabled  FailureKind = "disabled"
)

// UpstreamError wraps any failure of the generative service. It never reaches
// a submitter: the pipeline absorbs it and falls back to the heuristic.
type UpstreamError struct {
	Kind FailureKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream ai %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Classify wraps err as an UpstreamError, keeping an existing classification.
func Classify(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	if errors.Is(err, ErrQuotaExceeded) {
		kind = FailureQuota
	}
	if errors.Is(err, ErrNotConfigured) {
		kind = FailureDisabled
	}
	return &UpstreamError{Kind: kind, Err: err}
}

// KindOf returns the failure kind of err, or "" when it is not upstream.
func KindOf(err error) FailureKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}
