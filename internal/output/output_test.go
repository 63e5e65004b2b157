package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":  FormatJSON,
		"JSON":  FormatJSON,
		"yaml":  FormatYAML,
		"yml":   FormatYAML,
		"table": FormatTable,
		"":      FormatTable,
		"xml":   FormatTable,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPrintStats(t *testing.T) {
	row := StatsRow{Dir: "/tmp/c", EntryCount: 3, TotalSizeBytes: 2048, MaxSizeBytes: 100 << 20, UsedPercent: 0.002}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatTable, []string{"DIR", "/tmp/c", "ENTRIES", "2.0 KiB / 100.0 MiB"}},
		{FormatJSON, []string{`"entryCount": 3`, `"totalSizeBytes": 2048`}},
		{FormatYAML, []string{"entry_count: 3", "total_size_bytes: 2048"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinter(tt.format)
			p.SetWriter(&buf)
			if err := p.PrintStats(row); err != nil {
				t.Fatalf("PrintStats: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestPrintKeys(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatTable)
	p.SetWriter(&buf)
	if err := p.PrintKeys([]string{"a", "b"}); err != nil {
		t.Fatalf("PrintKeys: %v", err)
	}
	if buf.String() != "a\nb\n" {
		t.Errorf("table keys = %q", buf.String())
	}

	buf.Reset()
	p = NewPrinter(FormatJSON)
	p.SetWriter(&buf)
	if err := p.PrintKeys(nil); err != nil {
		t.Fatalf("PrintKeys: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json keys = %q; want []", buf.String())
	}
}

func TestPrintRaw(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(FormatYAML)
	p.SetWriter(&buf)
	if err := p.PrintRaw(json.RawMessage(`{"login":"octocat","id":1}`)); err != nil {
		t.Fatalf("PrintRaw: %v", err)
	}
	if !strings.Contains(buf.String(), "login: octocat") {
		t.Errorf("yaml output = %q", buf.String())
	}

	if err := p.PrintRaw(json.RawMessage(`{broken`)); err == nil {
		t.Error("PrintRaw of invalid JSON should fail")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:         "0 B",
		1023:      "1023 B",
		1024:      "1.0 KiB",
		1536:      "1.5 KiB",
		100 << 20: "100.0 MiB",
		3 << 30:   "3.0 GiB",
	}
	for n, want := range tests {
		if got := HumanBytes(n); got != want {
			t.Errorf("HumanBytes(%d) = %q; want %q", n, got, want)
		}
	}
}
