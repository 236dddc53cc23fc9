package postgres

import (
	"strings"
	"testing"
	"time"

	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

func TestListQueryNumbersPlaceholders(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := domain.Criteria{Rating: 2, Status: domain.StatusProcessing, From: from, Before: from.AddDate(0, 0, 7)}
	q, args, err := listQuery(c).ToSql()
	if err != nil {
		t.Fatal(err)
	}
	want := "FROM submissions WHERE rating = $1 AND status = $2 AND created_at >= $3 AND created_at < $4 ORDER BY seq DESC"
	if !strings.HasSuffix(q, want) {
		t.Fatalf("got %q want suffix %q", q, want)
	}
	if len(args) != 4 || args[1] != "processing" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestNullHelpers(t *testing.T) {
	if nullInt(nil).Valid || nullString(nil).Valid || nullTime(nil).Valid {
		t.Fatal("nil must map to NULL")
	}
	n, s, ts := 4, "x", time.Now()
	if v := nullInt(&n); !v.Valid || v.Int64 != 4 {
		t.Fatal("int not mapped")
	}
	if v := nullString(&s); !v.Valid || v.String != "x" {
		t.Fatal("string not mapped")
	}
	if v := nullTime(&ts); !v.Valid || !v.Time.Equal(ts) {
		t.Fatal("time not mapped")
	}
}
