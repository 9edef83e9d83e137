package engine

import (
	"context"
	"time"
)

// ProgressFunc receives the elapsed media time the engine has transcoded so
// far. The runner converts it to a percentage of the probed total duration.
type ProgressFunc func(elapsed time.Duration)

// Engine runs one transcode from an input file to a segmented HLS stream,
// reporting progress ticks along the way. Implementations must call
// onProgress from a single goroutine and return only after the underlying
// process has terminated.
type Engine interface {
	Name() string
	Transcode(ctx context.Context, inputPath, outputPath string, onProgress ProgressFunc) error
}

// Prober reports the total media duration of an input file. A probe failure
// is recoverable: the job proceeds without percentage information.
type Prober interface {
	Probe(ctx context.Context, inputPath string) (time.Duration, error)
}
