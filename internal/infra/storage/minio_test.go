package storage

import "testing"

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "snapshots/a.json"); got != "snapshots/a.json" {
		t.Fatalf("got %s", got)
	}
	if got := objectKey("feedback/", "snapshots/a.json"); got != "feedback/snapshots/a.json" {
		t.Fatalf("got %s", got)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.json": "application/json",
		"a.csv":  "text/csv",
		"a.bin":  "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentType(key); got != want {
			t.Errorf("%s: got %s want %s", key, got, want)
		}
	}
}
