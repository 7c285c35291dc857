package testutil

import (
	"math/rand/v2"
	"sync/atomic"
)

var worldCounter atomic.Int64

// TestFixtures provides test data generators
type TestFixtures struct{}

// NewTestFixtures creates a new test fixtures helper
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{}
}

// RandomString generates a random string of specified length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}

// RandomSeed generates a random world seed
func RandomSeed() string {
	return "seed_" + RandomString(12)
}

// TestWorldData represents test world data
type TestWorldData struct {
	ID   int64
	Name string
	Size int
}

// NewTestWorld creates test world data with a process-unique ID
func (f *TestFixtures) NewTestWorld() TestWorldData {
	return TestWorldData{
		ID:   1000 + worldCounter.Add(1),
		Name: "world_" + RandomString(8),
		Size: 240,
	}
}
