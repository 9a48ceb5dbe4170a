package preset

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/guidoenr/paraeq/internal/eq"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	want := Preset{
		Bands:    []eq.Band{{Frequency: 200, Gain: 3, Q: 1}, {Frequency: 5000, Gain: -6, Q: 2}},
		HighPass: 40,
		LowPass:  18000,
		Volume:   0.8,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	if err := os.WriteFile(path, []byte("{bands"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.json")
	if err := Save(path, Preset{HighPass: 20, LowPass: 20000}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Preset, 4)
	if err := Watch(ctx, path, nil, func(p Preset) { got <- p }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// unrelated files in the same directory are ignored
	_ = os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644)
	if err := Save(path, Preset{HighPass: 120, LowPass: 9000}); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case p := <-got:
		if p.HighPass != 120 || p.LowPass != 9000 {
			t.Fatalf("reloaded %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload observed")
	}
}
