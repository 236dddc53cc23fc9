package mysql

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

func TestListQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args, err := listQuery(domain.Criteria{Rating: 5, From: from, Before: from.AddDate(0, 0, 1)}).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(q, "FROM submissions WHERE rating = ? AND created_at >= ? AND created_at < ? ORDER BY seq DESC") {
		t.Fatalf("unexpected query %q", q)
	}
	if len(args) != 3 || args[0] != 5 {
		t.Fatalf("unexpected args %v", args)
	}

	q, args, _ = listQuery(domain.Criteria{}).ToSql()
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Fatalf("empty criteria must not filter: %q", q)
	}
}

type fakeRow struct{ vals []any }

func (f fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *domain.ID:
			*p = domain.ID(f.vals[i].(string))
		case *int:
			*p = f.vals[i].(int)
		case *string:
			*p = f.vals[i].(string)
		case *time.Time:
			*p = f.vals[i].(time.Time)
		case *domain.Status:
			*p = domain.Status(f.vals[i].(string))
		case *domain.Source:
			*p = domain.Source(f.vals[i].(string))
		case *sql.NullInt64:
			*p = f.vals[i].(sql.NullInt64)
		case *sql.NullString:
			*p = f.vals[i].(sql.NullString)
		case *sql.NullTime:
			*p = f.vals[i].(sql.NullTime)
		}
	}
	return nil
}

func TestScanSubmissionNullables(t *testing.T) {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	row := fakeRow{vals: []any{
		"abc", 4, "ok", ts, "processing",
		domain.Placeholder, domain.Placeholder, domain.Placeholder,
		sql.NullInt64{}, sql.NullString{},
		"pending", sql.NullTime{}, sql.NullTime{},
	}}
	s, err := scanSubmission(row)
	if err != nil {
		t.Fatal(err)
	}
	if s.PredictedStars != nil || s.PredictionExplanation != nil || s.AnnotatedAt != nil {
		t.Fatal("NULL columns must map to nil")
	}

	row.vals[8] = sql.NullInt64{Int64: 3, Valid: true}
	row.vals[9] = sql.NullString{String: "mixed", Valid: true}
	row.vals[11] = sql.NullTime{Time: ts, Valid: true}
	s, _ = scanSubmission(row)
	if s.PredictedStars == nil || *s.PredictedStars != 3 || *s.PredictionExplanation != "mixed" || !s.AnnotatedAt.Equal(ts) {
		t.Fatalf("unexpected %+v", s)
	}
}
