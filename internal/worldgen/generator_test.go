package worldgen

import (
	"fmt"
	"testing"
)

func TestSeedFingerprint(t *testing.T) {
	fp := SeedFingerprint("test")
	if len(fp) != 8 {
		t.Fatalf("expected 8 hex digits, got %q", fp)
	}
	if want := fmt.Sprintf("%08x", uint32(NewRNG("test").Next()*twoPow32)); fp != want {
		t.Errorf("expected first raw RNG output %s, got %s", want, fp)
	}
	if fp != NewGenerator("test").Fingerprint() {
		t.Error("Generator.Fingerprint disagrees with SeedFingerprint")
	}
	if SeedFingerprint("test") == SeedFingerprint("tset") {
		t.Error("expected different seeds to give different fingerprints")
	}
}
