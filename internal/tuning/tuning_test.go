package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, Defaults()) {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got %+v\nwant %+v", got, Defaults())
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: [not a number"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
