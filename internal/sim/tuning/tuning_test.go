package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_RepoConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got=%+v\nwant=%+v", got, Defaults())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 10\narena:\n  half_extent: 12\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 10 || got.Arena.HalfExtent != 12 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Movement.Spacing != 1.0 || got.Combat.SelfSkip != 2 {
		t.Fatalf("defaults lost: %+v", got)
	}
	if got.TickDuration() != 100*time.Millisecond {
		t.Fatalf("tick duration: %v", got.TickDuration())
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("movement:\n  boost_speed: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected boost_speed < normal_speed to be rejected")
	}
	if err := os.WriteFile(p, []byte("tick_rate_hz: [1, 2]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected yaml type error")
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	got, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("expected defaults")
	}
}
