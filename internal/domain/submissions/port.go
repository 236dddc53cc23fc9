package submissions

import "context"

// Repository port (interface untuk persistence)
//
// Implementations must be safe for concurrent use. Update and Append return
// only after the change is durable.
type Repository interface {
	Append(ctx context.Context, s *Submission) error
	Update(ctx context.Context, id ID, p Patch) (*Submission, error)
	Get(ctx context.Context, id ID) (*Submission, error)
	// List returns matching records newest-first.
	List(ctx context.Context, c Criteria) ([]*Submission, error)
	// Latest returns the most recently appended record or ErrNotFound.
	Latest(ctx context.Context) (*Submission, error)
}

// EventPublisher receives lifecycle notifications. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// SnapshotStore keeps exported copies of the submission log.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, data []byte) (string, error)
}
