package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeArchive struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeArchive) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, nil
}

func TestPruneUsesRetentionCutoff(t *testing.T) {
	archive := &fakeArchive{}
	p := NewPruner(24*time.Hour, archive)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	p.prune(context.Background())

	if len(archive.cutoffs) != 1 {
		t.Fatalf("prune calls = %d", len(archive.cutoffs))
	}
	want := at.Add(-24 * time.Hour)
	if !archive.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", archive.cutoffs[0], want)
	}
}

func TestPruneSurvivesArchiveError(t *testing.T) {
	archive := &fakeArchive{err: errors.New("db down")}
	p := NewPruner(time.Hour, archive)

	// Must not panic; the loop keeps running on failures.
	p.prune(context.Background())
}

func TestStartDisabledWithoutRetention(t *testing.T) {
	archive := &fakeArchive{}
	p := NewPruner(0, archive)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately with retention disabled")
	}
	if len(archive.cutoffs) != 0 {
		t.Fatal("disabled pruner must not prune")
	}
}
