package engine

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpegEngine transcodes to HLS by shelling out to ffmpeg. Progress is read
// from the machine-readable key=value stream ffmpeg writes to stdout when
// started with "-progress pipe:1".
type FFmpegEngine struct {
	BinaryPath      string // defaults to "ffmpeg"
	SegmentDuration int    // HLS segment length in seconds, defaults to 10
}

// NewFFmpegEngine creates an engine with the given segment duration.
func NewFFmpegEngine(binaryPath string, segmentDuration int) *FFmpegEngine {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if segmentDuration <= 0 {
		segmentDuration = 10
	}
	return &FFmpegEngine{BinaryPath: binaryPath, SegmentDuration: segmentDuration}
}

// Name returns the engine name
func (e *FFmpegEngine) Name() string {
	return "ffmpeg"
}

// BuildArgs generates the ffmpeg command line for an HLS transcode:
// baseline profile, level 3.0, unbounded playlist, fixed segment length.
func (e *FFmpegEngine) BuildArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-profile:v", "baseline",
		"-level", "3.0",
		"-hls_time", strconv.Itoa(e.SegmentDuration),
		"-hls_list_size", "0",
		"-f", "hls",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}
}

// Transcode runs ffmpeg and forwards progress ticks until the process exits.
func (e *FFmpegEngine) Transcode(ctx context.Context, inputPath, outputPath string, onProgress ProgressFunc) error {
	cmd := exec.CommandContext(ctx, e.BinaryPath, e.BuildArgs(inputPath, outputPath)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if elapsed, ok := ParseProgressLine(scanner.Text()); ok && onProgress != nil {
			onProgress(elapsed)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited with error: %w", err)
	}
	return nil
}

// ParseProgressLine extracts the elapsed media time from one line of the
// "-progress" stream. ffmpeg emits out_time_us (microseconds) and out_time_ms
// on alternating builds; both are handled. Other keys report no tick.
func ParseProgressLine(line string) (time.Duration, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// Despite the name, out_time_ms is in microseconds too.
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return time.Duration(us) * time.Microsecond, true
	case "out_time":
		d, err := parseClock(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

// parseClock parses ffmpeg's HH:MM:SS.micro clock format.
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second)), nil
}
