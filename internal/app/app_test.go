package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/feedback-ai/internal/config"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
	"github.com/bryanwahyu/feedback-ai/internal/infra/db/jsonfile"
	"github.com/bryanwahyu/feedback-ai/internal/logger"
)

func init() { logger.Discard() }

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.FilePath = filepath.Join(t.TempDir(), "data", "submissions.json")
	return cfg
}

func TestNewWithJSONStoreServesRequests(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	a.Start(ctx)
	h := a.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/submit-review?wait=true",
		strings.NewReader(`{"rating":5,"review_text":"Amazing dinner"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	if err := a.Shutdown(sctx); err != nil {
		t.Fatal(err)
	}

	// the write survived on disk
	repo, err := jsonfile.Open(cfg.Storage.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	latest, err := repo.Latest(context.Background())
	if err != nil || latest.Status != domain.StatusComplete {
		t.Fatalf("latest %+v %v", latest, err)
	}
}

func TestStartResumesProcessingRecords(t *testing.T) {
	cfg := testConfig(t)
	seed, err := jsonfile.Open(cfg.Storage.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	s, err := domain.New(2, "left before it finished", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.Append(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if err := seed.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)
	a.Pipeline.Wait()

	got, err := a.Submissions.Get(context.Background(), s.ID)
	if err != nil || got.Status != domain.StatusComplete || got.AnnotationSource != domain.SourceHeuristic {
		t.Fatalf("expected heuristic completion, got %+v %v", got, err)
	}
	a.Close()
}

func TestSecondWriterFailsFast(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, err := New(context.Background(), cfg); !errors.Is(err, jsonfile.ErrLocked) {
		t.Fatalf("expected locked store, got %v", err)
	}

	ro := *cfg
	ro.Storage.ReadOnly = true
	b, err := New(context.Background(), &ro)
	if err != nil {
		t.Fatalf("read-only open next to a writer: %v", err)
	}
	b.Close()
}

func TestUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "cassandra"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}
