package models

import (
	"time"
)

// ProgressPoint is a single progress sample taken while a job is transcoding.
// Immutable once created; ordering is by Time.
type ProgressPoint struct {
	Percentage float64   `json:"percentage"` // 0-100
	Time       time.Time `json:"time"`
}

// Outcome is the terminal result of a job. Once written it never changes;
// the store hands it out exactly once.
type Outcome struct {
	Success   bool   `json:"success"`
	StreamURL string `json:"streamUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EstimationResult is the output of the remaining-time estimator. It is
// computed fresh on every query and never cached.
type EstimationResult struct {
	Success       bool
	Remaining     time.Duration
	Eta           time.Time
	RatePerSecond float64 // percentage per second (regression slope)
	ErrorReason   string
}

// JobRequest carries a submitted job from the upload handler to the runner.
type JobRequest struct {
	ID         string
	InputPath  string
	OutputPath string
	StreamURL  string
}

// ProgressResponse is the poll payload for a job that is still running
// (or unknown, in which case Progress is 0 and Remaining is empty).
type ProgressResponse struct {
	InProgress bool   `json:"inProgress"`
	Progress   int    `json:"progress"`
	Remaining  string `json:"remaining,omitempty"`
}

// SubmitResponse is returned by the upload endpoint once a job is accepted.
type SubmitResponse struct {
	JobID string `json:"jobId"`
}
