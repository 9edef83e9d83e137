package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/hls-server/pkg/models"
	"github.com/psantana5/hls-server/pkg/store"
)

func TestCreateSeedsZeroPercentSample(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()
	now := time.Now()

	if err := s.Create(id, now); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	pct, history, ok := s.PeekLive(id)
	if !ok {
		t.Fatal("Expected live entry for freshly created job")
	}
	if pct != 0 {
		t.Errorf("Expected progress 0, got %d", pct)
	}
	if len(history) != 1 || history[0].Percentage != 0 || !history[0].Time.Equal(now) {
		t.Errorf("Expected single seed sample at submission time, got %+v", history)
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()

	if err := s.Create(id, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Create(id, time.Now()); err != store.ErrJobExists {
		t.Errorf("Expected ErrJobExists, got %v", err)
	}

	// The id stays taken even after the job finishes, until the outcome
	// is consumed.
	s.Finish(id, models.Outcome{Success: true})
	if err := s.Create(id, time.Now()); err != store.ErrJobExists {
		t.Errorf("Expected ErrJobExists for finished job, got %v", err)
	}
}

func TestRecordProgressAppendsHistory(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()
	t0 := time.Now()

	if err := s.Create(id, t0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.RecordProgress(id, 25, t0.Add(2*time.Second))
	s.RecordProgress(id, 50, t0.Add(4*time.Second))

	pct, history, ok := s.PeekLive(id)
	if !ok {
		t.Fatal("Expected live entry")
	}
	if pct != 50 {
		t.Errorf("Expected progress 50, got %d", pct)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 samples (seed + 2 ticks), got %d", len(history))
	}
	if history[2].Percentage != 50 {
		t.Errorf("Expected last sample 50%%, got %f", history[2].Percentage)
	}
}

func TestRecordProgressIgnoredForUnknownJob(t *testing.T) {
	s := store.NewJobStore()
	s.RecordProgress("nope", 50, time.Now())

	if _, _, ok := s.PeekLive("nope"); ok {
		t.Error("RecordProgress must not create live state for unknown jobs")
	}
}

func TestFinishRemovesLiveState(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()

	if err := s.Create(id, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.Finish(id, models.Outcome{Success: true, StreamURL: "/streams/out.m3u8"})

	if _, _, ok := s.PeekLive(id); ok {
		t.Error("Expected live state removed after Finish")
	}
	outcome, ok := s.TakeOutcome(id)
	if !ok {
		t.Fatal("Expected outcome after Finish")
	}
	if !outcome.Success || outcome.StreamURL != "/streams/out.m3u8" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
}

func TestTakeOutcomeIsExactlyOnce(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()

	if err := s.Create(id, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.Finish(id, models.Outcome{Success: false, Error: "video processing failed"})

	if _, ok := s.TakeOutcome(id); !ok {
		t.Fatal("Expected outcome on first read")
	}
	if _, ok := s.TakeOutcome(id); ok {
		t.Error("Expected outcome gone on second read")
	}
}

func TestLateTickAfterFinishIsDropped(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()
	t0 := time.Now()

	if err := s.Create(id, t0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.RecordProgress(id, 40, t0.Add(time.Second))
	s.Finish(id, models.Outcome{Success: true})

	// Late callback racing finalization: finalize wins.
	s.RecordProgress(id, 45, t0.Add(2*time.Second))

	if _, _, ok := s.PeekLive(id); ok {
		t.Error("Late tick must not resurrect live state")
	}
	outcome, ok := s.TakeOutcome(id)
	if !ok || !outcome.Success {
		t.Errorf("Expected terminal outcome to survive late tick, got %+v ok=%v", outcome, ok)
	}
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	s := store.NewJobStore()
	idA := uuid.New().String()
	idB := uuid.New().String()
	t0 := time.Now()

	if err := s.Create(idA, t0); err != nil {
		t.Fatalf("Create A failed: %v", err)
	}
	if err := s.Create(idB, t0); err != nil {
		t.Fatalf("Create B failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.RecordProgress(idA, n, t0.Add(time.Duration(n)*time.Millisecond))
		}(i)
		go func(n int) {
			defer wg.Done()
			s.RecordProgress(idB, n, t0.Add(time.Duration(n)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	_, historyA, okA := s.PeekLive(idA)
	_, historyB, okB := s.PeekLive(idB)
	if !okA || !okB {
		t.Fatal("Expected both jobs live")
	}
	if len(historyA) != 101 || len(historyB) != 101 {
		t.Errorf("Expected 101 samples each, got %d and %d", len(historyA), len(historyB))
	}
}

func TestPeekLiveReturnsSnapshotCopy(t *testing.T) {
	s := store.NewJobStore()
	id := uuid.New().String()
	t0 := time.Now()

	if err := s.Create(id, t0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, snapshot, _ := s.PeekLive(id)
	snapshot[0].Percentage = 99

	_, fresh, _ := s.PeekLive(id)
	if fresh[0].Percentage != 0 {
		t.Error("Mutating a PeekLive snapshot leaked into the store")
	}
}
