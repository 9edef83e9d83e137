package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFprobeProber reads the container duration with ffprobe.
type FFprobeProber struct {
	BinaryPath string // defaults to "ffprobe"
}

// NewFFprobeProber creates a prober using the given ffprobe binary.
func NewFFprobeProber(binaryPath string) *FFprobeProber {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &FFprobeProber{BinaryPath: binaryPath}
}

// Probe returns the total duration of the input media. A zero or negative
// duration is reported as an error so callers fall back to best-effort
// progress.
func (p *FFprobeProber) Probe(ctx context.Context, inputPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.BinaryPath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("non-positive media duration: %f", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
