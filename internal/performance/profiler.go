package performance

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler tracks timing metrics for named operations such as chunk
// generation, stream deltas and preview rendering.
type Profiler struct {
	mu        sync.Mutex
	metrics   map[string]*metric
	enabled   atomic.Bool
	startTime time.Time
}

type metric struct {
	count    int64
	items    int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	last     time.Duration
	lastCall time.Time
}

// Snapshot is a copy of one metric at a point in time
type Snapshot struct {
	Name     string        `json:"name"`
	Count    int64         `json:"count"`
	Items    int64         `json:"items"`
	Total    time.Duration `json:"-"`
	Min      time.Duration `json:"-"`
	Max      time.Duration `json:"-"`
	Last     time.Duration `json:"-"`
	LastCall time.Time     `json:"last_call"`
}

// Average returns the mean duration per call
func (s Snapshot) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// ItemsPerSecond returns throughput for metrics recorded with RecordItems
func (s Snapshot) ItemsPerSecond() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Items) / s.Total.Seconds()
}

// Operation represents a single timed operation
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
	items    int64
}

// NewProfiler creates a new performance profiler
func NewProfiler(enabled bool) *Profiler {
	p := &Profiler{
		metrics:   make(map[string]*metric),
		startTime: time.Now(),
	}
	p.enabled.Store(enabled)
	return p
}

// Start begins timing an operation. It returns nil when profiling is off; End on nil is a no-op.
func (p *Profiler) Start(name string) *Operation {
	if p == nil || !p.enabled.Load() {
		return nil
	}
	return &Operation{
		profiler: p,
		name:     name,
		start:    time.Now(),
	}
}

// AddItems counts work done by the operation (tiles generated, pixels rendered)
func (o *Operation) AddItems(n int) {
	if o == nil {
		return
	}
	o.items += int64(n)
}

// End completes timing an operation and records the metric
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.RecordItems(o.name, time.Since(o.start), o.items)
}

// Record directly records a duration for an operation
func (p *Profiler) Record(name string, duration time.Duration) {
	p.RecordItems(name, duration, 0)
}

// RecordItems records a duration together with the number of items processed
func (p *Profiler) RecordItems(name string, duration time.Duration, items int64) {
	if p == nil || !p.enabled.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, exists := p.metrics[name]
	if !exists {
		m = &metric{min: duration, max: duration}
		p.metrics[name] = m
	}

	m.count++
	m.items += items
	m.total += duration
	m.last = duration
	m.lastCall = time.Now()
	m.min = min(m.min, duration)
	m.max = max(m.max, duration)
}

// Get returns the snapshot for one operation
func (p *Profiler) Get(name string) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		return Snapshot{}, false
	}
	return m.snapshot(name), true
}

// Snapshots returns all metrics sorted by name
func (p *Profiler) Snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]Snapshot, 0, len(p.metrics))
	for name, m := range p.metrics {
		result = append(result, m.snapshot(name))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *metric) snapshot(name string) Snapshot {
	return Snapshot{
		Name:     name,
		Count:    m.count,
		Items:    m.items,
		Total:    m.total,
		Min:      m.min,
		Max:      m.max,
		Last:     m.last,
		LastCall: m.lastCall,
	}
}

// Reset clears all metrics
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = make(map[string]*metric)
	p.startTime = time.Now()
}

func (p *Profiler) since() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startTime
}

// Report generates a human-readable performance report
func (p *Profiler) Report() string {
	snapshots := p.Snapshots()
	if len(snapshots) == 0 {
		return "No performance metrics recorded"
	}
	start := p.since()

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Performance Report (since %s) ===\n", start.Format(time.RFC3339))
	fmt.Fprintf(&b, "%-32s %10s %12s %10s %10s %10s %12s\n", "Operation", "Count", "Avg", "Min", "Max", "Last", "Items/s")
	b.WriteString(strings.Repeat("-", 102))
	b.WriteByte('\n')

	for _, s := range snapshots {
		fmt.Fprintf(&b, "%-32s %10d %12s %10s %10s %10s %12.0f\n",
			s.Name,
			s.Count,
			s.Average().Round(time.Microsecond),
			s.Min.Round(time.Microsecond),
			s.Max.Round(time.Microsecond),
			s.Last.Round(time.Microsecond),
			s.ItemsPerSecond(),
		)
	}

	fmt.Fprintf(&b, "\nTotal runtime: %s\n", time.Since(start).Round(time.Second))
	return b.String()
}

// LogReport logs the performance report
func (p *Profiler) LogReport() {
	log.Print(p.Report())
}

type metricJSON struct {
	Snapshot
	TotalMS float64 `json:"total_ms"`
	AvgMS   float64 `json:"avg_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
	LastMS  float64 `json:"last_ms"`
}

type reportJSON struct {
	StartTime time.Time    `json:"start_time"`
	RuntimeMS float64      `json:"runtime_ms"`
	Enabled   bool         `json:"enabled"`
	Metrics   []metricJSON `json:"metrics"`
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// JSONReport generates a JSON performance report with durations in milliseconds
func (p *Profiler) JSONReport() ([]byte, error) {
	start := p.since()
	report := reportJSON{
		StartTime: start,
		RuntimeMS: milliseconds(time.Since(start)),
		Enabled:   p.IsEnabled(),
		Metrics:   []metricJSON{},
	}

	for _, s := range p.Snapshots() {
		report.Metrics = append(report.Metrics, metricJSON{
			Snapshot: s,
			TotalMS:  milliseconds(s.Total),
			AvgMS:    milliseconds(s.Average()),
			MinMS:    milliseconds(s.Min),
			MaxMS:    milliseconds(s.Max),
			LastMS:   milliseconds(s.Last),
		})
	}

	return json.MarshalIndent(report, "", "  ")
}

// Handler serves the report; ?format=text returns the table, anything else JSON
func (p *Profiler) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(p.Report()))
			return
		}
		data, err := p.JSONReport()
		if err != nil {
			http.Error(w, "failed to build report", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
}

// Enable enables profiling
func (p *Profiler) Enable() {
	p.enabled.Store(true)
}

// Disable disables profiling
func (p *Profiler) Disable() {
	p.enabled.Store(false)
}

// IsEnabled returns whether profiling is enabled
func (p *Profiler) IsEnabled() bool {
	return p != nil && p.enabled.Load()
}
