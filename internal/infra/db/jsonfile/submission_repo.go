package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

// ErrLocked is returned by Open when another handle owns the file.
var ErrLocked = errors.New("store file is locked by another process")

// ErrReadOnly is returned by writes on a handle opened with ReadOnly.
var ErrReadOnly = errors.New("store opened read-only")

// SubmissionRepository keeps every submission in memory and mirrors the full
// log to a single JSON file. Writes replace the file atomically. A writable
// handle holds an exclusive lock on "<path>.lock" until Close.
type SubmissionRepository struct {
	mu       sync.RWMutex
	path     string
	items    []*domain.Submission // append order, oldest first
	index    map[domain.ID]int
	lock     *flock.Flock
	readOnly bool
	loc      *time.Location

	// persist is swapped in tests to simulate disk failures
	persist func(path string, data []byte) error
}

type Option func(*SubmissionRepository)

// ReadOnly loads a snapshot without taking the lock. Writes fail with
// ErrReadOnly.
func ReadOnly() Option {
	return func(r *SubmissionRepository) { r.readOnly = true }
}

// WithLocation sets the zone used for timestamps stored without an offset.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *SubmissionRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// Open loads path (creating nothing but the lock file until the first
// write). An empty path keeps the log in memory only.
func Open(path string, opts ...Option) (*SubmissionRepository, error) {
	r := &SubmissionRepository{
		path:    path,
		index:   map[domain.ID]int{},
		loc:     time.UTC,
		persist: writeAtomic,
	}
	for _, opt := range opts {
		opt(r)
	}
	if path == "" {
		return r, nil
	}
	if !r.readOnly {
		if err := r.acquire(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		r.Close()
		return nil, &domain.StoreIOError{Op: "open", Err: err}
	}
	items, err := decode(data, r.loc)
	if err != nil {
		r.Close()
		return nil, &domain.StoreIOError{Op: "open", Err: err}
	}
	// file order is not trusted; timestamps are
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.Before(items[j].Timestamp) })
	for _, s := range items {
		if _, dup := r.index[s.ID]; dup {
			continue
		}
		r.index[s.ID] = len(r.items)
		r.items = append(r.items, s)
	}
	return r, nil
}

func (r *SubmissionRepository) acquire() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return &domain.StoreIOError{Op: "lock", Err: err}
	}
	l := flock.New(r.path + ".lock")
	ok, err := l.TryLock()
	if err != nil {
		return &domain.StoreIOError{Op: "lock", Err: err}
	}
	if !ok {
		return &domain.StoreIOError{Op: "lock", Err: fmt.Errorf("%s: %w", r.path, ErrLocked)}
	}
	r.lock = l
	return nil
}

// Close releases the file lock. The handle must not be used afterwards.
func (r *SubmissionRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lock == nil {
		return nil
	}
	err := r.lock.Unlock()
	r.lock = nil
	return err
}

func (r *SubmissionRepository) Append(ctx context.Context, s *domain.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "submission id is required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writable("append"); err != nil {
		return err
	}
	if _, dup := r.index[s.ID]; dup {
		return &domain.ValidationError{Field: "id", Message: "duplicate submission id"}
	}

	r.items = append(r.items, s.Clone())
	if err := r.flush("append"); err != nil {
		r.items = r.items[:len(r.items)-1]
		return err
	}
	r.index[s.ID] = len(r.items) - 1
	return nil
}

func (r *SubmissionRepository) Update(ctx context.Context, id domain.ID, p domain.Patch) (*domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writable("update"); err != nil {
		return nil, err
	}
	i, ok := r.index[id]
	if !ok {
		return nil, domain.NotFound(id)
	}

	prev := r.items[i]
	next := prev.Clone()
	if err := p.Apply(next); err != nil {
		return nil, err
	}
	r.items[i] = next
	if err := r.flush("update"); err != nil {
		r.items[i] = prev
		return nil, err
	}
	return next.Clone(), nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id domain.ID) (*domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, domain.NotFound(id)
	}
	return r.items[i].Clone(), nil
}

func (r *SubmissionRepository) List(ctx context.Context, c domain.Criteria) ([]*domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Submission, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		if c.Match(r.items[i]) {
			out = append(out, r.items[i].Clone())
		}
	}
	return out, nil
}

func (r *SubmissionRepository) Latest(ctx context.Context) (*domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return nil, domain.ErrNotFound
	}
	return r.items[len(r.items)-1].Clone(), nil
}

func (r *SubmissionRepository) writable(op string) error {
	if r.readOnly {
		return &domain.StoreIOError{Op: op, Err: ErrReadOnly}
	}
	if r.path != "" && r.lock == nil {
		return &domain.StoreIOError{Op: op, Err: errors.New("store closed")}
	}
	return nil
}

// flush must be called with the write lock held.
func (r *SubmissionRepository) flush(op string) error {
	if r.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.items, "", "  ")
	if err != nil {
		return &domain.StoreIOError{Op: op, Err: err}
	}
	if err := r.persist(r.path, data); err != nil {
		return &domain.StoreIOError{Op: op, Err: err}
	}
	return nil
}

// writeAtomic writes to a temp file in the same directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
