package store

import (
	"errors"
	"sync"
	"time"

	"github.com/psantana5/hls-server/pkg/models"
)

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
)

// JobStore is the in-memory registry for transcoding jobs. It is shared by
// one writer goroutine per job (the runner) and any number of polling
// readers. Everything vanishes on restart, which is fine: a half-finished
// transcode is not resumable anyway.
//
// A job's live state (current percentage + sample history) and its terminal
// outcome are tracked separately: Finish atomically swaps one for the other,
// and TakeOutcome removes the outcome on first read.
type JobStore struct {
	mu       sync.RWMutex
	progress map[string]int
	history  map[string][]models.ProgressPoint
	outcomes map[string]models.Outcome
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{
		progress: make(map[string]int),
		history:  make(map[string][]models.ProgressPoint),
		outcomes: make(map[string]models.Outcome),
	}
}

// Create registers a new job at 0% with a seed sample at now. Callers mint
// ids with uuid, so a collision means a caller bug.
func (s *JobStore) Create(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.progress[id]; ok {
		return ErrJobExists
	}
	if _, ok := s.outcomes[id]; ok {
		return ErrJobExists
	}

	s.progress[id] = 0
	s.history[id] = []models.ProgressPoint{{Percentage: 0, Time: now}}
	return nil
}

// RecordProgress appends a sample and updates the current percentage for a
// running job. Ticks for finished or unknown jobs are dropped: a late
// callback racing Finish must never resurrect live state.
func (s *JobStore) RecordProgress(id string, percentage int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.progress[id]; !ok {
		return
	}
	s.progress[id] = percentage
	s.history[id] = append(s.history[id], models.ProgressPoint{
		Percentage: float64(percentage),
		Time:       now,
	})
}

// Finish writes the terminal outcome and removes the live entries in one
// critical section, so no reader can observe both and no late tick can
// overwrite the result.
func (s *JobStore) Finish(id string, outcome models.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[id] = outcome
	delete(s.progress, id)
	delete(s.history, id)
}

// TakeOutcome reads and removes the outcome if present. The second call for
// the same id reports not-found: terminal results are delivered at most once.
func (s *JobStore) TakeOutcome(id string) (models.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := s.outcomes[id]
	if !ok {
		return models.Outcome{}, false
	}
	delete(s.outcomes, id)
	return outcome, true
}

// PeekLive returns the current percentage and a copy of the sample history
// for a running job. The copy keeps callers from iterating a slice the
// runner goroutine is still appending to.
func (s *JobStore) PeekLive(id string) (int, []models.ProgressPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pct, ok := s.progress[id]
	if !ok {
		return 0, nil, false
	}
	history := make([]models.ProgressPoint, len(s.history[id]))
	copy(history, s.history[id])
	return pct, history, true
}

// LiveCount returns the number of jobs currently running. Used by the
// metrics exporter.
func (s *JobStore) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.progress)
}

// PendingOutcomes returns the number of finished jobs whose outcome has not
// been collected yet.
func (s *JobStore) PendingOutcomes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}
