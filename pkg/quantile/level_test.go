package quantile

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"p50", 0.50, false},
		{"P90", 0.90, false},
		{"p2.5", 0.025, false},
		{"75%", 0.75, false},
		{"0.25", 0.25, false},
		{"1", 1.0, false},
		{"0", 0, false},
		{" p25 ", 0.25, false},
		{"p101", 0, true},
		{"1.5", 0, true},
		{"-0.1", 0, true},
		{"abc", 0, true},
		{"pxx", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && abs(got-tt.want) > 1e-12 {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevels(t *testing.T) {
	got, err := ParseLevels("p25, 0.5,,75%")
	if err != nil {
		t.Fatalf("ParseLevels() error: %v", err)
	}
	want := []float64{0.25, 0.5, 0.75}
	if len(got) != len(want) {
		t.Fatalf("ParseLevels() = %v, want %v", got, want)
	}
	for i := range want {
		if abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("ParseLevels()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := ParseLevels("p25,p200"); err == nil {
		t.Error("ParseLevels() with out-of-range level should fail")
	}
}

func TestFormatLevel(t *testing.T) {
	tests := []struct {
		q    float64
		want string
	}{
		{0.25, "p25"},
		{0.5, "p50"},
		{0.975, "p97.5"},
		{0, "p0"},
		{1, "p100"},
	}
	for _, tt := range tests {
		if got := FormatLevel(tt.q); got != tt.want {
			t.Errorf("FormatLevel(%v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
