package orchestrator

import (
	"testing"
	"time"
)

func TestSeenSetRemember(t *testing.T) {
	t.Parallel()
	seen := newSeenSet(time.Minute)

	if !seen.Remember("evt-1") {
		t.Fatal("first sighting must be admitted")
	}
	if seen.Remember("evt-1") {
		t.Fatal("second sighting within the window must be suppressed")
	}
	if !seen.Remember("evt-2") {
		t.Fatal("distinct id must be admitted")
	}
}

func TestSeenSetExpires(t *testing.T) {
	t.Parallel()
	seen := newSeenSet(time.Minute)
	base := time.Now()
	seen.now = func() time.Time { return base }

	seen.Remember("evt-1")

	seen.now = func() time.Time { return base.Add(2 * time.Minute) }
	if !seen.Remember("evt-1") {
		t.Fatal("expired id must be admitted again")
	}
}
