package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/feedback-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/feedback-ai/internal/domain/submissions"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress int64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	SubmissionsTotal  uint64
	AnnotatedAI       uint64
	AnnotatedFallback uint64
	RefinedOK         uint64
	RefinedFailed     uint64

	mu        sync.Mutex
	failures  map[ai.FailureKind]uint64
	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now(), failures: map[ai.FailureKind]uint64{}}
}

// Default is the process-wide registry served on /metrics.
var Default = NewMetrics()

// IncrementSubmissions counts accepted submissions.
func (m *Metrics) IncrementSubmissions() {
	atomic.AddUint64(&m.SubmissionsTotal, 1)
}

// Annotated implements the pipeline recorder: one call per first pass.
func (m *Metrics) Annotated(source domain.Source, failure ai.FailureKind) {
	if source == domain.SourceAI {
		atomic.AddUint64(&m.AnnotatedAI, 1)
		return
	}
	atomic.AddUint64(&m.AnnotatedFallback, 1)
	if failure != "" {
		m.mu.Lock()
		m.failures[failure]++
		m.mu.Unlock()
	}
}

// Refined implements the pipeline recorder.
func (m *Metrics) Refined(ok bool) {
	if ok {
		atomic.AddUint64(&m.RefinedOK, 1)
	} else {
		atomic.AddUint64(&m.RefinedFailed, 1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	failures := make(map[string]uint64, len(m.failures))
	for k, v := range m.failures {
		failures[string(k)] = v
	}
	m.mu.Unlock()

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadInt64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"submissions_total":    atomic.LoadUint64(&m.SubmissionsTotal),
		"annotations": map[string]interface{}{
			"ai":          atomic.LoadUint64(&m.AnnotatedAI),
			"fallback":    atomic.LoadUint64(&m.AnnotatedFallback),
			"failures":    failures,
			"refined":     atomic.LoadUint64(&m.RefinedOK),
			"refine_fail": atomic.LoadUint64(&m.RefinedFailed),
		},
		"uptime_seconds": time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": mem.Alloc,
			"sys_bytes":   mem.Sys,
			"num_gc":      mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddInt64(&m.RequestsInProgress, 1)
		defer atomic.AddInt64(&m.RequestsInProgress, -1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
