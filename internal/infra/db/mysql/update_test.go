package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

const selectForUpdate = `(?s)SELECT .* FROM submissions WHERE id=\? FOR UPDATE`

var rowColumns = []string{
	"id", "rating", "review_text", "created_at", "status",
	"ai_response", "ai_summary", "ai_recommended_actions",
	"predicted_stars", "prediction_explanation",
	"annotation_source", "annotated_at", "refined_at",
}

func newMock(t *testing.T) (*SubmissionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSubmissionRepository(db), mock
}

func storedRow(status string) *sqlmock.Rows {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return sqlmock.NewRows(rowColumns).AddRow(
		"abc", 4, "ok", ts, status,
		domain.Placeholder, domain.Placeholder, domain.Placeholder,
		nil, nil,
		"pending", nil, nil,
	)
}

func completePatch() domain.Patch {
	processing, complete := domain.StatusProcessing, domain.StatusComplete
	source := domain.SourceHeuristic
	return domain.Patch{
		ExpectStatus:     &processing,
		Status:           &complete,
		AnnotationSource: &source,
		Prediction:       &domain.Prediction{Stars: 4, Explanation: "upbeat"},
	}
}

func TestUpdateCommitsPatch(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs("abc").WillReturnRows(storedRow("processing"))
	mock.ExpectExec("UPDATE submissions").
		WithArgs("complete", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(4), "upbeat", "heuristic", sqlmock.AnyArg(), sqlmock.AnyArg(), "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), "abc", completePatch())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusComplete || got.PredictedStars == nil || *got.PredictedStars != 4 {
		t.Fatalf("unexpected %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStaleRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs("abc").WillReturnRows(storedRow("complete"))
	mock.ExpectRollback()

	if _, err := repo.Update(context.Background(), "abc", completePatch()); !errors.Is(err, domain.ErrStaleUpdate) {
		t.Fatalf("expected stale update, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs("nope").WillReturnRows(sqlmock.NewRows(rowColumns))
	mock.ExpectRollback()

	if _, err := repo.Update(context.Background(), "nope", completePatch()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWriteFailureIsStoreIO(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs("abc").WillReturnRows(storedRow("processing"))
	mock.ExpectExec("UPDATE submissions").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := repo.Update(context.Background(), "abc", completePatch()); !domain.IsStoreIO(err) {
		t.Fatalf("expected StoreIOError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
