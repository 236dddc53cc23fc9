package submissions

import "time"

// EventType enum
type EventType string

const (
	EventCreated   EventType = "submission.created"
	EventCompleted EventType = "submission.completed"
	EventRefined   EventType = "submission.refined"
)

// Event is emitted on lifecycle transitions.
type Event struct {
	Type         EventType `json:"type"`
	SubmissionID ID        `json:"submission_id"`
	Rating       int       `json:"rating"`
	Status       Status    `json:"status"`
	Source       Source    `json:"source"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEvent snapshots the fields consumers care about.
func NewEvent(t EventType, s *Submission, at time.Time) Event {
	return Event{
		Type:         t,
		SubmissionID: s.ID,
		Rating:       s.Rating,
		Status:       s.Status,
		Source:       s.AnnotationSource,
		OccurredAt:   at.UTC(),
	}
}
