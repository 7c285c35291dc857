package procedural

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirage/server/internal/worldgen"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", 30*time.Second, 3)
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected baseURL http://localhost:8080, got %s", client.baseURL)
	}

	if client.timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", client.timeout)
	}

	if client.retryCount != 3 {
		t.Errorf("Expected retryCount 3, got %d", client.retryCount)
	}

	if NewClient("http://localhost:8080", time.Second, -2).retryCount != 0 {
		t.Error("Expected negative retry count to clamp to 0")
	}
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status:           "ok",
			Service:          "mirage-server",
			GeneratorVersion: worldgen.Version,
			SeedFingerprint:  worldgen.SeedFingerprint("test"),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	health, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if health.SeedFingerprint != worldgen.SeedFingerprint("test") {
		t.Errorf("Expected fingerprint for seed test, got %s", health.SeedFingerprint)
	}
}

func TestClient_HealthCheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "degraded"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	if _, err := client.HealthCheck(context.Background()); err == nil {
		t.Error("Expected error for unhealthy status")
	}
}

func TestClient_GenerateChunk(t *testing.T) {
	chunk, err := worldgen.GenerateChunk(4, -3, 9, 240, "test")
	if err != nil {
		t.Fatalf("GenerateChunk failed: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/worlds/4/chunks/-3/9" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("size"); got != "240" {
			t.Errorf("Expected size=240, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ChunkResponse{WorldID: 4, X: -3, Y: 9, Size: 240, Chunk: chunk})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0)
	resp, err := client.GenerateChunk(context.Background(), 4, -3, 9, 240)
	if err != nil {
		t.Fatalf("GenerateChunk failed: %v", err)
	}
	if !reflect.DeepEqual(resp.Chunk, chunk) {
		t.Errorf("Decoded chunk differs:\n%#v\n%#v", resp.Chunk, chunk)
	}
}

func TestClient_GenerateChunk_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ChunkResponse{WorldID: 1, Size: 10})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 3)
	if _, err := client.GenerateChunk(context.Background(), 1, 0, 0, 0); err != nil {
		t.Fatalf("GenerateChunk failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_GenerateChunk_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"NotFound","message":"world 9 not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 3)
	_, err := client.GenerateChunk(context.Background(), 9, 0, 0, 0)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Code != "NotFound" {
		t.Errorf("Unexpected status error %+v", statusErr)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_GenerateChunk_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 5*time.Second, 10)
	_, err := client.GenerateChunk(ctx, 1, 0, 0, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
