package performance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestProfiler(t *testing.T) {
	profiler := NewProfiler(true)

	op := profiler.Start("test_operation")
	time.Sleep(10 * time.Millisecond)
	op.End()

	metric, ok := profiler.Get("test_operation")
	if !ok {
		t.Fatal("Metric not found")
	}
	if metric.Count != 1 {
		t.Errorf("Expected count 1, got %d", metric.Count)
	}
	if metric.Min < 10*time.Millisecond {
		t.Errorf("Expected min time >= 10ms, got %v", metric.Min)
	}
}

func TestProfilerDisabled(t *testing.T) {
	profiler := NewProfiler(false)

	op := profiler.Start("test_operation")
	if op != nil {
		t.Error("Expected nil operation when profiler disabled")
	}
	// nil operations are safe to use
	op.AddItems(3)
	op.End()

	profiler.Record("test", 10*time.Millisecond)
	if _, ok := profiler.Get("test"); ok {
		t.Error("Expected no metric when profiler disabled")
	}

	profiler.Enable()
	profiler.Record("test", 10*time.Millisecond)
	if _, ok := profiler.Get("test"); !ok {
		t.Error("Expected metric after enabling")
	}

	var nilProfiler *Profiler
	if nilProfiler.Start("x") != nil || nilProfiler.IsEnabled() {
		t.Error("Expected nil profiler to be inert")
	}
}

func TestProfilerStatistics(t *testing.T) {
	profiler := NewProfiler(true)

	for _, d := range []time.Duration{4 * time.Millisecond, 2 * time.Millisecond, 6 * time.Millisecond} {
		profiler.RecordItems("gen", d, 10)
	}

	metric, _ := profiler.Get("gen")
	if metric.Count != 3 || metric.Items != 30 {
		t.Errorf("Expected 3 calls and 30 items, got %d and %d", metric.Count, metric.Items)
	}
	if metric.Min != 2*time.Millisecond || metric.Max != 6*time.Millisecond || metric.Last != 6*time.Millisecond {
		t.Errorf("Unexpected min/max/last %v/%v/%v", metric.Min, metric.Max, metric.Last)
	}
	if metric.Average() != 4*time.Millisecond {
		t.Errorf("Expected avg 4ms, got %v", metric.Average())
	}
	// 30 items in 12ms
	if got := metric.ItemsPerSecond(); got < 2499 || got > 2501 {
		t.Errorf("Expected 2500 items/s, got %f", got)
	}
}

func TestProfilerConcurrent(t *testing.T) {
	profiler := NewProfiler(true)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				op := profiler.Start("concurrent")
				op.AddItems(1)
				op.End()
			}
		}()
	}
	wg.Wait()

	metric, _ := profiler.Get("concurrent")
	if metric.Count != 800 || metric.Items != 800 {
		t.Errorf("Expected 800 calls and items, got %d and %d", metric.Count, metric.Items)
	}
}

func TestProfilerReport(t *testing.T) {
	profiler := NewProfiler(true)
	if profiler.Report() != "No performance metrics recorded" {
		t.Error("Expected empty report message")
	}

	profiler.Record("op_b", 20*time.Millisecond)
	profiler.Record("op_a", 10*time.Millisecond)

	report := profiler.Report()
	a, b := strings.Index(report, "op_a"), strings.Index(report, "op_b")
	if a < 0 || b < 0 || a > b {
		t.Errorf("Expected sorted operations in report:\n%s", report)
	}

	profiler.Reset()
	if len(profiler.Snapshots()) != 0 {
		t.Error("Expected no metrics after reset")
	}
}

func TestProfilerJSONReport(t *testing.T) {
	profiler := NewProfiler(true)
	profiler.Record("json_test", 15*time.Millisecond)

	jsonData, err := profiler.JSONReport()
	if err != nil {
		t.Fatalf("Failed to generate JSON report: %v", err)
	}

	var report struct {
		Metrics []struct {
			Name  string  `json:"name"`
			Count int64   `json:"count"`
			AvgMS float64 `json:"avg_ms"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(jsonData, &report); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(report.Metrics) != 1 || report.Metrics[0].Name != "json_test" {
		t.Fatalf("Unexpected metrics %+v", report.Metrics)
	}
	if report.Metrics[0].AvgMS != 15 {
		t.Errorf("Expected avg 15ms, got %f", report.Metrics[0].AvgMS)
	}
}

func TestProfilerHandler(t *testing.T) {
	profiler := NewProfiler(true)
	profiler.Record("handler_test", time.Millisecond)

	rr := httptest.NewRecorder()
	profiler.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/performance", nil))
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON, got %s", rr.Header().Get("Content-Type"))
	}

	rr = httptest.NewRecorder()
	profiler.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/performance?format=text", nil))
	if !strings.Contains(rr.Body.String(), "handler_test") {
		t.Errorf("Expected text report, got %s", rr.Body.String())
	}
}
