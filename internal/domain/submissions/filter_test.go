package submissions

import (
	"testing"
	"time"
)

func record(rating int, ts time.Time) *Submission {
	return &Submission{ID: ID(ts.Format(time.RFC3339Nano)), Rating: rating, Timestamp: ts, Status: StatusComplete}
}

func TestResolveEmptyQueryIsIdentity(t *testing.T) {
	c, err := Query{}.Resolve(time.Now(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !c.IsZero() {
		t.Fatalf("expected zero criteria, got %+v", c)
	}
	list := []*Submission{record(1, time.Now()), record(5, time.Now())}
	if got := Apply(list, c); len(got) != 2 {
		t.Fatalf("expected identity, got %d records", len(got))
	}
}

func TestRatingFilterPreservesOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []*Submission{
		record(5, base.Add(4*time.Hour)),
		record(5, base.Add(3*time.Hour)),
		record(4, base.Add(2*time.Hour)),
		record(2, base.Add(time.Hour)),
		record(1, base),
	}
	c, err := Query{Rating: 5}.Resolve(base, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := Apply(list, c)
	if len(got) != 2 {
		t.Fatalf("expected 2 five-star records, got %d", len(got))
	}
	if got[0] != list[0] || got[1] != list[1] {
		t.Fatalf("order not preserved")
	}
}

func TestSingleDateUsesCalendarDayInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	c, err := Query{Date: "2026-03-02"}.Resolve(time.Now(), loc)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 2026-03-01T17:00Z is 2026-03-02 00:00 in UTC+7.
	inside := record(3, time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC))
	lastNs := record(3, time.Date(2026, 3, 2, 16, 59, 59, 999999999, time.UTC))
	outside := record(3, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC))
	if !c.Match(inside) || !c.Match(lastNs) {
		t.Fatal("expected records inside the local day to match")
	}
	if c.Match(outside) {
		t.Fatal("expected next local day to be excluded")
	}
}

func TestRelativeRanges(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		r    DateRange
		days int
	}{
		{RangeWeek, 7},
		{RangeMonth, 30},
		{RangeYear, 365},
	}
	for _, tc := range cases {
		c, err := Query{DateRange: tc.r}.Resolve(now, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.r, err)
		}
		want := now.AddDate(0, 0, -tc.days)
		if !c.From.Equal(want) || !c.Before.IsZero() {
			t.Fatalf("%s: got %+v, want from %v", tc.r, c, want)
		}
		if !c.Match(record(3, want)) {
			t.Fatalf("%s: lower bound must be inclusive", tc.r)
		}
		if c.Match(record(3, want.Add(-time.Second))) {
			t.Fatalf("%s: record before window matched", tc.r)
		}
	}
}

func TestCustomRangeInclusive(t *testing.T) {
	c, err := Query{DateRange: RangeCustom, StartDate: "2026-01-10", EndDate: "2026-01-12"}.Resolve(time.Now(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !c.Match(record(2, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))) {
		t.Fatal("start day must be included")
	}
	if !c.Match(record(2, time.Date(2026, 1, 12, 23, 59, 0, 0, time.UTC))) {
		t.Fatal("end day must be included")
	}
	if c.Match(record(2, time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC))) {
		t.Fatal("day after end must be excluded")
	}

	ts := "2026-01-12T08:00:00Z"
	c, err = Query{StartDate: "2026-01-10", EndDate: ts}.Resolve(time.Now(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !c.Match(record(2, time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC))) {
		t.Fatal("exact end timestamp must be included")
	}
}

func TestFiltersCompose(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	c, err := Query{Rating: 4, DateRange: RangeWeek}.Resolve(now, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Match(record(5, now.Add(-time.Hour))) {
		t.Fatal("rating must still apply")
	}
	if c.Match(record(4, now.AddDate(0, 0, -8))) {
		t.Fatal("range must still apply")
	}
	if !c.Match(record(4, now.Add(-time.Hour))) {
		t.Fatal("expected match")
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	bad := []Query{
		{Rating: 6},
		{Date: "03/02/2026"},
		{DateRange: "decade"},
		{DateRange: RangeCustom},
		{StartDate: "2026-02-01", EndDate: "2026-01-01"},
		{StartDate: "yesterday"},
	}
	for _, q := range bad {
		if _, err := q.Resolve(time.Now(), nil); !IsValidation(err) {
			t.Errorf("Resolve(%+v): expected validation error, got %v", q, err)
		}
	}
}
