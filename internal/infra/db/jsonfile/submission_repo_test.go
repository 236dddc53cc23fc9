package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

func newSub(t *testing.T, rating int, at time.Time) *domain.Submission {
	t.Helper()
	s, err := domain.New(rating, "review", at)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAppendListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []domain.ID
	for i, r := range []int{5, 5, 4, 2, 1} {
		s := newSub(t, r, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Append(ctx, s); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.ID)
	}

	list, err := repo.List(ctx, domain.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 || list[0].ID != ids[4] || list[4].ID != ids[0] {
		t.Fatalf("expected newest-first order")
	}
	again, _ := repo.List(ctx, domain.Criteria{})
	for i := range list {
		if list[i].ID != again[i].ID {
			t.Fatal("order must be stable across calls")
		}
	}

	latest, err := repo.Latest(ctx)
	if err != nil || latest.ID != ids[4] {
		t.Fatalf("latest: %v %v", latest, err)
	}

	fives, _ := repo.List(ctx, domain.Criteria{Rating: 5})
	if len(fives) != 2 || fives[0].ID != ids[1] {
		t.Fatalf("rating filter must keep order, got %d", len(fives))
	}
}

func TestLatestEmpty(t *testing.T) {
	repo, _ := Open("")
	if _, err := repo.Latest(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo, _ := Open("")
	s := newSub(t, 3, time.Now())
	_ = repo.Append(ctx, s)

	processing, complete := domain.StatusProcessing, domain.StatusComplete
	p := domain.Patch{ExpectStatus: &processing, Status: &complete, Prediction: &domain.Prediction{Stars: 3, Explanation: "x"}}
	got, err := repo.Update(ctx, s.ID, p)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusComplete || *got.PredictedStars != 3 {
		t.Fatalf("unexpected %+v", got)
	}
	if _, err := repo.Update(ctx, s.ID, p); !errors.Is(err, domain.ErrStaleUpdate) {
		t.Fatalf("expected stale update, got %v", err)
	}
	if _, err := repo.Update(ctx, "missing", p); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// returned copies are detached from the store
	got.AIResponse = "mutated"
	stored, _ := repo.Get(ctx, s.ID)
	if stored.AIResponse == "mutated" {
		t.Fatal("store leaked internal pointer")
	}
}

func TestDurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "submissions.json")
	repo, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	a := newSub(t, 4, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	b := newSub(t, 2, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	_ = repo.Append(ctx, a)
	_ = repo.Append(ctx, b)
	complete := domain.StatusComplete
	if _, err := repo.Update(ctx, a.ID, domain.Patch{Status: &complete}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	list, _ := reopened.List(ctx, domain.Criteria{})
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("unexpected reload %v", list)
	}
	got, _ := reopened.Get(ctx, a.ID)
	if got.Status != domain.StatusComplete {
		t.Fatal("update was not persisted")
	}
	tmps, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(tmps) != 0 {
		t.Fatalf("temp files left behind: %v", tmps)
	}
}

func TestOpenAcceptsWrappedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.json")
	body := `{"submissions":[
 {"id":"b","rating":2,"review_text":"x","timestamp":"2025-01-02T00:00:00Z","status":"complete"},
 {"id":"a","rating":5,"review_text":"y","timestamp":"2025-01-01T00:00:00Z","status":"complete"}
]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	repo, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	latest, _ := repo.Latest(context.Background())
	if latest.ID != "b" {
		t.Fatalf("expected b newest, got %s", latest.ID)
	}
}

func TestFailedWriteLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	repo, _ := Open(filepath.Join(t.TempDir(), "s.json"))
	defer repo.Close()
	s := newSub(t, 5, time.Now())
	_ = repo.Append(ctx, s)

	repo.persist = func(string, []byte) error { return errors.New("disk full") }
	other := newSub(t, 1, time.Now())
	if err := repo.Append(ctx, other); !domain.IsStoreIO(err) {
		t.Fatalf("expected StoreIOError, got %v", err)
	}
	if _, err := repo.Get(ctx, other.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("failed append must not be visible")
	}

	complete := domain.StatusComplete
	if _, err := repo.Update(ctx, s.ID, domain.Patch{Status: &complete}); !domain.IsStoreIO(err) {
		t.Fatalf("expected StoreIOError, got %v", err)
	}
	got, _ := repo.Get(ctx, s.ID)
	if got.Status != domain.StatusProcessing {
		t.Fatal("failed update must roll back")
	}
}

func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo, _ := Open(filepath.Join(t.TempDir(), "s.json"))
	defer repo.Close()
	subs := make([]*domain.Submission, 20)
	for i := range subs {
		subs[i] = newSub(t, i%5+1, time.Now())
	}
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *domain.Submission) {
			defer wg.Done()
			_ = repo.Append(ctx, s)
		}(s)
	}
	wg.Wait()
	list, _ := repo.List(ctx, domain.Criteria{})
	if len(list) != 20 {
		t.Fatalf("expected 20, got %d", len(list))
	}
}

func TestSecondWriterIsRefused(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "submissions.json")
	server, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	a := newSub(t, 5, time.Now())
	if err := server.Append(ctx, a); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !domain.IsStoreIO(err) || !errors.Is(err, ErrLocked) {
		t.Fatalf("expected locked store error, got %v", err)
	}

	// a read-only handle sees the snapshot but cannot write over it
	cli, err := Open(path, ReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cli.Get(ctx, a.ID); err != nil {
		t.Fatalf("read-only handle: %v", err)
	}
	if err := cli.Append(ctx, newSub(t, 1, time.Now())); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}

	b := newSub(t, 2, time.Now())
	if err := server.Append(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := server.Close(); err != nil {
		t.Fatal(err)
	}
	if err := server.Append(ctx, newSub(t, 3, time.Now())); !domain.IsStoreIO(err) {
		t.Fatalf("closed handle must refuse writes, got %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	defer reopened.Close()
	list, _ := reopened.List(ctx, domain.Criteria{})
	if len(list) != 2 {
		t.Fatalf("expected both acknowledged appends on disk, got %d", len(list))
	}
}

func TestOpenReadsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.json")
	body := `[
 {"id":"sub_20250101120000_42","rating":4,"review_text":"Nice pasta","timestamp":"2025-01-01T12:00:00.123456",
  "status":"completed","ai_response":"Thanks!","ai_summary":"Liked pasta","ai_recommended_actions":"Keep it",
  "predicted_stars":"4","prediction_explanation":"positive words"},
 {"id":"sub_20250102090000_7","rating":2,"review_text":"Cold soup","timestamp":"2025-01-02 09:00:00","status":"processing"},
 {"id":"sub_bad_time","rating":3,"review_text":"x","timestamp":"yesterday","status":"completed"},
 {"id":"sub_bad_rating","rating":9,"review_text":"x","timestamp":"2025-01-03T00:00:00","status":"completed"},
 "not an object"
]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	jakarta := time.FixedZone("WIB", 7*3600)
	repo, err := Open(path, WithLocation(jakarta))
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	ctx := context.Background()

	list, _ := repo.List(ctx, domain.Criteria{})
	if len(list) != 2 {
		t.Fatalf("expected the two readable records, got %d", len(list))
	}

	done, err := repo.Get(ctx, "sub_20250101120000_42")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 1, 1, 5, 0, 0, 123456000, time.UTC)
	if !done.Timestamp.Equal(want) {
		t.Fatalf("naive timestamp read in the wrong zone: %v", done.Timestamp)
	}
	if !done.IsComplete() || done.AnnotationSource != domain.SourceAI {
		t.Fatalf("completed must map to complete, got %q %q", done.Status, done.AnnotationSource)
	}
	if done.PredictedStars == nil || *done.PredictedStars != 4 || *done.PredictionExplanation != "positive words" {
		t.Fatalf("prediction pair %+v", done)
	}

	pending, err := repo.Get(ctx, "sub_20250102090000_7")
	if err != nil {
		t.Fatal(err)
	}
	if pending.Status != domain.StatusProcessing || pending.AIResponse != domain.Placeholder || pending.PredictedStars != nil {
		t.Fatalf("pending record %+v", pending)
	}
}
