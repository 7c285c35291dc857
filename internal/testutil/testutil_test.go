package testutil

import (
	"net/http"
	"strings"
	"testing"
)

func TestRandomString(t *testing.T) {
	str := RandomString(10)
	if len(str) != 10 {
		t.Errorf("Expected string length 10, got %d", len(str))
	}

	// Test multiple times to ensure randomness
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		str2 := RandomString(10)
		if len(str2) != 10 {
			t.Errorf("Expected string length 10, got %d", len(str2))
		}
		if seen[str2] {
			t.Logf("Warning: Duplicate string generated (this is rare but possible)")
		}
		seen[str2] = true
	}
}

func TestRandomSeed(t *testing.T) {
	seed := RandomSeed()
	if !strings.HasPrefix(seed, "seed_") {
		t.Errorf("Expected seed to start with 'seed_', got %s", seed)
	}
}

func TestNewTestWorld(t *testing.T) {
	fixtures := NewTestFixtures()
	a := fixtures.NewTestWorld()
	b := fixtures.NewTestWorld()

	if a.Name == "" {
		t.Error("World name should not be empty")
	}
	if a.Size <= 0 {
		t.Errorf("Expected positive size, got %d", a.Size)
	}
	if a.ID == b.ID {
		t.Errorf("Expected distinct world IDs, got %d twice", a.ID)
	}
}

func TestSetupTestDB(t *testing.T) {
	db, driver := SetupTestDB(t)
	if driver == "" {
		t.Fatal("Expected a driver name")
	}
	var one int
	if err := db.QueryRow("SELECT 1").Scan(&one); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if one != 1 {
		t.Errorf("Expected 1, got %d", one)
	}
}

func TestHTTPTestHelper(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `","auth":"` + r.Header.Get("Authorization") + `"}`))
	})
	helper := NewHTTPTestHelper(handler)

	rr := helper.MakeRequestWithHeaders(http.MethodPost, "/", map[string]string{"a": "b"}, map[string]string{"Authorization": "Bearer x"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if err := AssertJSONResponse(rr.Body, map[string]string{"auth": "Bearer x", "method": "POST"}); err != nil {
		t.Error(err)
	}
}
