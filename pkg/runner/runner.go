package runner

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/psantana5/hls-server/pkg/engine"
	"github.com/psantana5/hls-server/pkg/logging"
	"github.com/psantana5/hls-server/pkg/models"
	"github.com/psantana5/hls-server/pkg/store"
)

// clientErrorMessage is the only failure text a polling client ever sees.
// The real cause is logged server-side; file paths and process errors must
// not leak through the API.
const clientErrorMessage = "video processing failed"

// ArtifactRemover deletes the temporary uploaded input once a job reaches a
// terminal state.
type ArtifactRemover interface {
	Delete(path string) error
}

// FinishRecorder receives terminal job outcomes for metrics.
type FinishRecorder interface {
	RecordJobFinished(success bool, duration time.Duration)
}

// Runner drives submitted jobs end to end: register in the store, probe the
// input, run the transcode with a progress callback, write the terminal
// outcome, clean up the artifact. Transcodes execute on a bounded pool of
// goroutines so a burst of uploads cannot fork-bomb ffmpeg.
type Runner struct {
	store   *store.JobStore
	engine  engine.Engine
	prober  engine.Prober
	remover ArtifactRemover
	logger  *logging.Logger
	metrics FinishRecorder

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup
}

// New creates a runner with a worker pool of maxConcurrent transcodes.
func New(s *store.JobStore, e engine.Engine, p engine.Prober, remover ArtifactRemover, logger *logging.Logger, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:   s,
		engine:  e,
		prober:  p,
		remover: remover,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// SetMetrics attaches a metrics recorder. Optional.
func (r *Runner) SetMetrics(m FinishRecorder) {
	r.metrics = m
}

// Submit registers the job and schedules its transcode in the background.
// It returns as soon as the job is in the store; the caller can answer the
// HTTP request immediately with the job id.
func (r *Runner) Submit(req models.JobRequest) error {
	if err := r.store.Create(req.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to register job %s: %w", req.ID, err)
	}

	r.wg.Add(1)
	go r.run(req)
	return nil
}

// run executes one job. Whatever path it takes, it writes exactly one
// terminal outcome and deletes the uploaded artifact.
func (r *Runner) run(req models.JobRequest) {
	defer r.wg.Done()

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	log := r.logger.WithField("job_id", req.ID)
	started := time.Now()

	err := r.transcode(req, log)

	var outcome models.Outcome
	if err != nil {
		log.Error("Transcode failed", map[string]interface{}{"error": err.Error()})
		outcome = models.Outcome{Success: false, Error: clientErrorMessage}
	} else {
		log.Info("Transcode finished", map[string]interface{}{"stream_url": req.StreamURL})
		outcome = models.Outcome{Success: true, StreamURL: req.StreamURL}
	}

	// Single terminal write; any tick still in flight loses the race here
	// and is dropped by the store.
	r.store.Finish(req.ID, outcome)

	if r.metrics != nil {
		r.metrics.RecordJobFinished(outcome.Success, time.Since(started))
	}

	if delErr := r.remover.Delete(req.InputPath); delErr != nil {
		log.Warn("Failed to delete uploaded artifact", map[string]interface{}{"error": delErr.Error()})
	}
}

// transcode probes the input and runs the engine, recording a progress
// sample per tick. A probe failure is not fatal: the job continues with an
// unknown total and its percentage stays at 0 until completion.
func (r *Runner) transcode(req models.JobRequest, log *logging.Logger) error {
	var totalSeconds float64
	if total, err := r.prober.Probe(r.ctx, req.InputPath); err != nil {
		log.Warn("Unable to determine media duration, progress will stay at 0 until completion",
			map[string]interface{}{"error": err.Error()})
	} else {
		totalSeconds = total.Seconds()
	}

	onProgress := func(elapsed time.Duration) {
		pct := 0
		if totalSeconds > 0 {
			pct = int(math.Floor(elapsed.Seconds() / totalSeconds * 100))
			if pct > 100 {
				pct = 100
			}
		}
		r.store.RecordProgress(req.ID, pct, time.Now())
		log.Debug("Progress tick", map[string]interface{}{"percent": pct})
	}

	return r.engine.Transcode(r.ctx, req.InputPath, req.OutputPath, onProgress)
}

// Shutdown stops accepting work and waits up to timeout for in-flight jobs.
func (r *Runner) Shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		r.cancel() // abort remaining transcodes
		return fmt.Errorf("timed out waiting for %d active jobs", len(r.sem))
	}
}
