package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/hls-server/pkg/store"
)

// Exporter serves Prometheus metrics for the transcoding server: job
// lifecycle counters, live-store gauges sampled at scrape time, and host
// cpu/memory readings.
type Exporter struct {
	store     *store.JobStore
	startTime time.Time

	registry          *promclient.Registry
	jobsCreated       promclient.Counter
	jobsCompleted     promclient.Counter
	jobsFailed        promclient.Counter
	transcodeDuration promclient.Histogram
}

// NewExporter creates an exporter bound to the given job store.
func NewExporter(s *store.JobStore) *Exporter {
	registry := promclient.NewRegistry()

	e := &Exporter{
		store:     s,
		startTime: time.Now(),
		registry:  registry,
		jobsCreated: promclient.NewCounter(promclient.CounterOpts{
			Name: "hlsd_jobs_created_total",
			Help: "Total number of transcoding jobs accepted",
		}),
		jobsCompleted: promclient.NewCounter(promclient.CounterOpts{
			Name: "hlsd_jobs_completed_total",
			Help: "Total number of transcoding jobs finished successfully",
		}),
		jobsFailed: promclient.NewCounter(promclient.CounterOpts{
			Name: "hlsd_jobs_failed_total",
			Help: "Total number of transcoding jobs finished with an error",
		}),
		transcodeDuration: promclient.NewHistogram(promclient.HistogramOpts{
			Name:    "hlsd_transcode_duration_seconds",
			Help:    "Wall-clock duration of completed transcodes",
			Buckets: promclient.ExponentialBuckets(1, 2, 12), // 1s .. ~68m
		}),
	}

	registry.MustRegister(e.jobsCreated, e.jobsCompleted, e.jobsFailed, e.transcodeDuration)
	return e
}

// RecordJobCreated increments the accepted-jobs counter.
func (e *Exporter) RecordJobCreated() {
	e.jobsCreated.Inc()
}

// RecordJobFinished records a terminal outcome and the transcode duration.
func (e *Exporter) RecordJobFinished(success bool, duration time.Duration) {
	if success {
		e.jobsCompleted.Inc()
	} else {
		e.jobsFailed.Inc()
	}
	e.transcodeDuration.Observe(duration.Seconds())
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP hlsd_uptime_seconds Time since the server started\n")
	fmt.Fprintf(w, "# TYPE hlsd_uptime_seconds gauge\n")
	fmt.Fprintf(w, "hlsd_uptime_seconds %d\n", int64(time.Since(e.startTime).Seconds()))

	fmt.Fprintf(w, "\n# HELP hlsd_jobs_active Number of jobs currently transcoding\n")
	fmt.Fprintf(w, "# TYPE hlsd_jobs_active gauge\n")
	fmt.Fprintf(w, "hlsd_jobs_active %d\n", e.store.LiveCount())

	fmt.Fprintf(w, "\n# HELP hlsd_outcomes_pending Finished jobs whose result has not been collected\n")
	fmt.Fprintf(w, "# TYPE hlsd_outcomes_pending gauge\n")
	fmt.Fprintf(w, "hlsd_outcomes_pending %d\n", e.store.PendingOutcomes())

	e.writeHostMetrics(w)

	// Append the counter/histogram families kept in the registry.
	families, err := e.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "\n# gather error: %v\n", err)
		return
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "\n# encode error: %v\n", err)
			return
		}
	}
	fmt.Fprintf(w, "\n%s", buf.String())
}

// writeHostMetrics reports host cpu and memory so a single scrape shows
// whether the box is saturated by transcodes.
func (e *Exporter) writeHostMetrics(w http.ResponseWriter) {
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		fmt.Fprintf(w, "\n# HELP hlsd_host_cpu_percent Host CPU utilization\n")
		fmt.Fprintf(w, "# TYPE hlsd_host_cpu_percent gauge\n")
		fmt.Fprintf(w, "hlsd_host_cpu_percent %.2f\n", cpuPercent[0])
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "\n# HELP hlsd_host_memory_used_bytes Host memory in use\n")
		fmt.Fprintf(w, "# TYPE hlsd_host_memory_used_bytes gauge\n")
		fmt.Fprintf(w, "hlsd_host_memory_used_bytes %d\n", memInfo.Used)
	}
}
