package output

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"toon", FormatTOON},
		{"", FormatText},
		{"netcdf", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	f, err := NewFormatter(FormatJSON, "", true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	defer f.Close()

	if f.Format() != FormatJSON {
		t.Errorf("Format() = %q, want json", f.Format())
	}
	if !f.Colored() {
		t.Error("stdout formatter should keep color")
	}
	if f.file != nil {
		t.Error("file should be nil for stdout")
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "band.json")

	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.Colored() {
		t.Error("file output should not be colored")
	}
	if err := f.Output(map[string]float64{"p25": 1.5}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"p25": 1.5`) {
		t.Errorf("file content = %q", data)
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	if _, err := NewFormatter(FormatText, "/nonexistent/dir/out.txt", false); err == nil {
		t.Error("NewFormatter() should fail for an unwritable path")
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{17.5, "17.5"},
		{65.0 / 3, "21.6667"},
		{0, "0"},
		{1e20, "1e+20"},
		{math.NaN(), "--"},
	}
	for _, tt := range tests {
		if got := Float(tt.in); got != tt.want {
			t.Errorf("Float(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func bandTable() *Table {
	return NewTable(
		"Percentile Band",
		[]string{"Time", "p25", "p75"},
		[][]string{{"0", "17.5", "32.5"}, {"1", "2", "--"}},
		[]string{"Steps: 2", "", ""},
		nil,
	)
}

func TestTableRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := bandTable().RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Percentile Band", "===============", "17.5", "32.5", "--"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText() missing %q in:\n%s", want, out)
		}
	}
	// Header and footer cells may be upper-cased by the table renderer.
	for _, want := range []string{"P25", "STEPS: 2"} {
		if !strings.Contains(strings.ToUpper(out), want) {
			t.Errorf("RenderText() missing %q in:\n%s", want, out)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := bandTable().RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"## Percentile Band",
		"| Time | p25 | p75 |",
		"| ---: | ---: | ---: |",
		"| 0 | 17.5 | 32.5 |",
		"| Steps: 2 |  |  |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderMarkdown() missing %q in:\n%s", want, out)
		}
	}
}

func TestTableRenderData(t *testing.T) {
	rows, ok := bandTable().RenderData().([]map[string]string)
	if !ok {
		t.Fatalf("RenderData() type = %T", bandTable().RenderData())
	}
	if len(rows) != 2 || rows[0]["p75"] != "32.5" || rows[1]["Time"] != "1" {
		t.Errorf("RenderData() = %v", rows)
	}

	data := map[string]any{"percentiles": []float64{25, 75}}
	table := NewTable("t", nil, nil, nil, data)
	if got, ok := table.RenderData().(map[string]any); !ok || got["percentiles"] == nil {
		t.Errorf("RenderData() should return Data when set, got %v", table.RenderData())
	}
}

func TestSummary(t *testing.T) {
	s := &Summary{Title: "Bias"}
	s.Add("Field", "bias in tas").Add("Units", "K").Add("Masked cells", "3")

	var buf bytes.Buffer
	if err := s.RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Field:        bias in tas") {
		t.Errorf("RenderText() labels not aligned:\n%s", out)
	}

	buf.Reset()
	if err := s.RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if !strings.Contains(buf.String(), "- **Units**: K") {
		t.Errorf("RenderMarkdown() = %q", buf.String())
	}

	data := s.RenderData().(map[string]string)
	if data["Masked cells"] != "3" {
		t.Errorf("RenderData() = %v", data)
	}
}

func TestReport(t *testing.T) {
	r := &Report{
		Title:    "Weighted vs Unweighted IQR",
		Sections: []Renderable{bandTable(), (&Summary{Title: "Weights"}).Add("Members", "3")},
	}

	var buf bytes.Buffer
	if err := r.RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	if !strings.Contains(buf.String(), "Weighted vs Unweighted IQR") || !strings.Contains(buf.String(), "Members: 3") {
		t.Errorf("RenderText() = %s", buf.String())
	}

	buf.Reset()
	if err := r.RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "# Weighted vs Unweighted IQR\n") {
		t.Errorf("RenderMarkdown() = %s", buf.String())
	}

	data := r.RenderData().(map[string]any)
	if parts := data["sections"].([]any); len(parts) != 2 {
		t.Errorf("sections = %d, want 2", len(parts))
	}
}

func TestFormatterOutput(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   any
		want   string
	}{
		{"renderable text", FormatText, bandTable(), "Percentile Band"},
		{"renderable markdown", FormatMarkdown, bandTable(), "## Percentile Band"},
		{"renderable json", FormatJSON, bandTable(), `"p25": "17.5"`},
		{"raw json", FormatJSON, map[string]int{"members": 3}, `"members": 3`},
		{"raw text falls back to json", FormatText, map[string]int{"members": 3}, `"members": 3`},
		{"raw markdown fenced", FormatMarkdown, map[string]int{"members": 3}, "```json"},
		{"raw toon", FormatTOON, map[string]int{"members": 3}, "members: 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewWriterFormatter(tt.format, &buf, false)
			if err := f.Output(tt.data); err != nil {
				t.Fatalf("Output() error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Output() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestFormatterOutputJSONValid(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatJSON, &buf, false)
	if err := f.Output(bandTable()); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	var decoded []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestFormatterMessages(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatText, &buf, false)

	f.Success("wrote %d fields", 2)
	f.Warning("%d cells masked", 4)
	f.Info("config: %s", "climdiag.toml")

	out := buf.String()
	for _, want := range []string{"wrote 2 fields\n", "WARNING: 4 cells masked\n", "config: climdiag.toml\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("messages missing %q in %q", want, out)
		}
	}
}
