package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSeed_RejectsDuplicateIDs(t *testing.T) {
	raw := []byte(`
sims:
  - {id: a, number: "1"}
  - {id: a, number: "2"}
`)
	if _, err := ParseSeed(raw); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestParseSeed_RejectsUnknownRisk(t *testing.T) {
	raw := []byte(`
registered:
  - {id: reg-1, number: "1", relation: x, risk: extreme}
`)
	if _, err := ParseSeed(raw); err == nil {
		t.Fatal("expected unknown risk error")
	}
}

func TestLoadSeed_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	raw := []byte(`
ready_message: hello
sims:
  - {id: sim-1, number: "071 000 0001", locked: false, last: fresh}
registered:
  - {id: reg-1, number: "071 000 0001", relation: Primary, risk: low}
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if seed.ReadyMessage != "hello" || len(seed.Sims) != 1 || seed.Sims[0].Number != "071 000 0001" {
		t.Errorf("unexpected seed %+v", seed)
	}
}

func TestLoadSeed_DefaultWhenEmpty(t *testing.T) {
	seed, err := LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(seed.Sims) != 3 {
		t.Errorf("len(Sims) %d, want 3", len(seed.Sims))
	}
}

func TestLoadSeed_MissingFile(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
