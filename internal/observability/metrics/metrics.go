package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory counters for HTTP requests and external tool
// invocations plus a gauge of pipeline jobs currently in flight. It
// coordinates concurrent writers via a RWMutex.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	toolRuns        map[string]uint64
	toolFailures    map[string]uint64
	activeJobs      atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		toolRuns:        make(map[string]uint64),
		toolFailures:    make(map[string]uint64),
	}
}

// Default returns the singleton Recorder shared by packages that do not
// require a custom instrumentation pipeline.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest accumulates request count and cumulative duration by HTTP
// method, normalized path, and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveToolRun records an external tool invocation keyed by pipeline stage
// ("stage", "overlay", "finalize").
func (r *Recorder) ObserveToolRun(stage string) {
	name := normalizeName(stage)
	r.mu.Lock()
	r.toolRuns[name]++
	r.mu.Unlock()
}

// ObserveToolFailure records a failed external tool invocation keyed by
// pipeline stage. The caller records the attempt separately.
func (r *Recorder) ObserveToolFailure(stage string) {
	name := normalizeName(stage)
	r.mu.Lock()
	r.toolFailures[name]++
	r.mu.Unlock()
}

// JobStarted increments the active pipeline job gauge.
func (r *Recorder) JobStarted() {
	r.activeJobs.Add(1)
}

// JobFinished decrements the active job gauge, guarding against negative
// values when updates race.
func (r *Recorder) JobFinished() {
	for {
		current := r.activeJobs.Load()
		if current <= 0 {
			return
		}
		if r.activeJobs.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// ActiveJobs exposes the current gauge of in-flight pipeline jobs.
func (r *Recorder) ActiveJobs() int64 {
	return r.activeJobs.Load()
}

// ToolCounts returns copies of the tool attempt and failure counters for
// testing and reporting purposes.
func (r *Recorder) ToolCounts() (runs map[string]uint64, failures map[string]uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs = make(map[string]uint64, len(r.toolRuns))
	for k, v := range r.toolRuns {
		runs[k] = v
	}
	failures = make(map[string]uint64, len(r.toolFailures))
	for k, v := range r.toolFailures {
		failures[k] = v
	}
	return runs, failures
}

// Reset clears all counters and gauges. It is intended for test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.toolRuns = make(map[string]uint64)
	r.toolFailures = make(map[string]uint64)
	r.mu.Unlock()
	r.activeJobs.Store(0)
}

// Handler exposes the recorder in a Prometheus-style text format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.write(w)
	})
}

func (r *Recorder) write(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	stages := r.sortedStages()

	fmt.Fprintln(w, "# HELP facefilter_http_requests_total Total HTTP requests processed by method, path, and status")
	fmt.Fprintln(w, "# TYPE facefilter_http_requests_total counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "facefilter_http_requests_total{method=%q,path=%q,status=%q} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP facefilter_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE facefilter_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "facefilter_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %f\n", label.method, label.path, label.status, r.requestDuration[label].Seconds())
	}

	fmt.Fprintln(w, "# HELP facefilter_tool_runs_total External tool invocations by pipeline stage")
	fmt.Fprintln(w, "# TYPE facefilter_tool_runs_total counter")
	for _, stage := range stages {
		fmt.Fprintf(w, "facefilter_tool_runs_total{stage=%q} %d\n", stage, r.toolRuns[stage])
	}

	fmt.Fprintln(w, "# HELP facefilter_tool_failures_total Failed external tool invocations by pipeline stage")
	fmt.Fprintln(w, "# TYPE facefilter_tool_failures_total counter")
	for _, stage := range stages {
		fmt.Fprintf(w, "facefilter_tool_failures_total{stage=%q} %d\n", stage, r.toolFailures[stage])
	}

	fmt.Fprintln(w, "# HELP facefilter_active_jobs Current number of pipeline jobs in flight")
	fmt.Fprintln(w, "# TYPE facefilter_active_jobs gauge")
	fmt.Fprintf(w, "facefilter_active_jobs %d\n", r.activeJobs.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedStages() []string {
	seen := make(map[string]struct{}, len(r.toolRuns)+len(r.toolFailures))
	for stage := range r.toolRuns {
		seen[stage] = struct{}{}
	}
	for stage := range r.toolFailures {
		seen[stage] = struct{}{}
	}
	stages := make([]string, 0, len(seen))
	for stage := range seen {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	return stages
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// normalizePath collapses per-file paths so processed-file downloads do not
// produce an unbounded label set.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/processed/") && len(path) > len("/processed/") {
		return "/processed/:name"
	}
	return path
}
