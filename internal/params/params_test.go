package params

import (
	"math"
	"testing"
)

func TestDefaultsWithinRanges(t *testing.T) {
	p := Defaults()
	if p.ClampFrequency(p.DefaultFrequency) != p.DefaultFrequency {
		t.Fatalf("default frequency %f outside range", p.DefaultFrequency)
	}
	if p.ClampGain(p.DefaultGain) != p.DefaultGain {
		t.Fatalf("default gain %f outside range", p.DefaultGain)
	}
	if p.ClampQ(p.DefaultQ) != p.DefaultQ {
		t.Fatalf("default q %f outside range", p.DefaultQ)
	}
}

func TestClampFrequency(t *testing.T) {
	p := Defaults()
	if got := p.ClampFrequency(999999); got != 20000 {
		t.Fatalf("expected 20000, got %f", got)
	}
	if got := p.ClampFrequency(1); got != 20 {
		t.Fatalf("expected 20, got %f", got)
	}
}

func TestClampNaN(t *testing.T) {
	if got := Clamp(math.NaN(), -1, 1); got != -1 {
		t.Fatalf("expected NaN to collapse to min, got %f", got)
	}
}
