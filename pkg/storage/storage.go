package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Layout owns the on-disk directories for uploaded inputs and produced HLS
// streams. Uploaded artifacts live only for the duration of their job; the
// streams directory is served statically by the HTTP layer.
type Layout struct {
	UploadDir string
	StreamDir string
}

// NewLayout creates the upload and stream directories if they are missing.
func NewLayout(uploadDir, streamDir string) (*Layout, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", uploadDir, err)
	}
	if err := os.MkdirAll(streamDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stream directory %s: %w", streamDir, err)
	}
	return &Layout{UploadDir: uploadDir, StreamDir: streamDir}, nil
}

// SaveUpload persists an uploaded video under a timestamped unique name and
// returns the path. The timestamp keeps concurrent uploads of the same
// filename from clobbering each other.
func (l *Layout) SaveUpload(filename string, r io.Reader) (string, error) {
	stamp := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s", stamp, filepath.Base(filename))
	path := filepath.Join(l.UploadDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// StreamPaths returns the playlist output path and the public URL for a new
// job, both derived from the same timestamp.
func (l *Layout) StreamPaths() (outputPath, streamURL string) {
	stamp := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("output_%s.m3u8", stamp)
	return filepath.Join(l.StreamDir, name), "/streams/" + name
}

// Delete removes a file, ignoring the case where it is already gone.
func (l *Layout) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
