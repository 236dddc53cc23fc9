package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/feedback-ai/internal/application"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
)

// ErrExportDisabled is returned by Export when no snapshot store is wired.
var ErrExportDisabled = errors.New("snapshot export is not configured")

const defaultReadTimeout = 5 * time.Second

// Service implements the submission use-cases.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Repo        domain.Repository
	Pipeline    *Pipeline
	Events      domain.EventPublisher
	Snapshots   domain.SnapshotStore
	Clock       application.Clock
	Location    *time.Location
	ReadTimeout time.Duration
}

// Submit validates and stores a new record, then hands it to the pipeline.
// It returns the processing record without waiting for any AI work.
func (s *Service) Submit(ctx context.Context, rating int, reviewText string) (*domain.Submission, error) {
	sub, err := s.create(ctx, rating, reviewText)
	if err != nil {
		return nil, err
	}
	if s.Pipeline != nil {
		s.Pipeline.Dispatch(sub.ID)
	}
	return sub, nil
}

// SubmitAndWait is Submit followed by waiting for the first pass. When ctx
// ends first the record is returned as currently stored.
func (s *Service) SubmitAndWait(ctx context.Context, rating int, reviewText string) (*domain.Submission, error) {
	sub, err := s.create(ctx, rating, reviewText)
	if err != nil {
		return nil, err
	}
	if s.Pipeline == nil {
		return sub, nil
	}
	done, err := s.Pipeline.Await(ctx, sub.ID)
	if err == nil {
		return done, nil
	}
	if ctx.Err() != nil {
		rctx, cancel := s.readContext(context.Background())
		defer cancel()
		return s.Repo.Get(rctx, sub.ID)
	}
	return nil, err
}

func (s *Service) create(ctx context.Context, rating int, reviewText string) (*domain.Submission, error) {
	sub, err := domain.New(rating, reviewText, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Append(ctx, sub); err != nil {
		return nil, err
	}
	logger.WithField("submission_id", sub.ID).Info("submission stored")
	if s.Events != nil {
		if err := s.Events.Publish(ctx, domain.NewEvent(domain.EventCreated, sub, sub.Timestamp)); err != nil {
			logger.WithError(err).Warn("publish event failed")
		}
	}
	return sub.Clone(), nil
}

// Get ambil 1 submission by id
func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	return s.Repo.Get(ctx, id)
}

// Latest returns the most recent submission.
func (s *Service) Latest(ctx context.Context) (*domain.Submission, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	return s.Repo.Latest(ctx)
}

// List returns submissions matching q, newest-first.
func (s *Service) List(ctx context.Context, q domain.Query) ([]*domain.Submission, error) {
	c, err := s.Criteria(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	return s.Repo.List(ctx, c)
}

// Criteria resolves q against the service clock and location.
func (s *Service) Criteria(q domain.Query) (domain.Criteria, error) {
	return q.Resolve(s.now(), s.Location)
}

// Export writes every submission as one JSON document to the snapshot store
// and returns its location.
func (s *Service) Export(ctx context.Context) (string, error) {
	if s.Snapshots == nil {
		return "", ErrExportDisabled
	}
	all, err := s.Repo.List(ctx, domain.Criteria{})
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	data, err := json.MarshalIndent(map[string]any{
		"exported_at": now,
		"count":       len(all),
		"submissions": all,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("snapshots/submissions-%s.json", now.Format("20060102T150405Z"))
	url, err := s.Snapshots.PutSnapshot(ctx, key, data)
	if err != nil {
		return "", err
	}
	logger.WithField("key", key).WithField("count", len(all)).Info("snapshot exported")
	return url, nil
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.ReadTimeout
	if d <= 0 {
		d = defaultReadTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Versioned counts writes so read caches can tell when the data changed.
type Versioned struct {
	domain.Repository
	v atomic.Uint64
}

func NewVersioned(repo domain.Repository) *Versioned {
	return &Versioned{Repository: repo}
}

func (r *Versioned) Append(ctx context.Context, s *domain.Submission) error {
	err := r.Repository.Append(ctx, s)
	if err == nil {
		r.v.Add(1)
	}
	return err
}

func (r *Versioned) Update(ctx context.Context, id domain.ID, p domain.Patch) (*domain.Submission, error) {
	out, err := r.Repository.Update(ctx, id, p)
	if err == nil {
		r.v.Add(1)
	}
	return out, err
}

// Version changes after every successful write.
func (r *Versioned) Version() uint64 { return r.v.Load() }
