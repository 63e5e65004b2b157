// Package output prints CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format Format
	writer io.Writer
}

// NewPrinter creates a new printer writing to stdout
func NewPrinter(format Format) *Printer {
	return &Printer{format: format, writer: os.Stdout}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Format returns the configured format.
func (p *Printer) Format() Format {
	return p.format
}

// Print outputs data as JSON or YAML. Table output is handled by the
// specific methods below and falls back to JSON here.
func (p *Printer) Print(data any) error {
	if p.format == FormatYAML {
		enc := yaml.NewEncoder(p.writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintRaw prints a JSON document. YAML output converts it; other formats
// print it indented.
func (p *Printer) PrintRaw(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode cached value: %w", err)
	}
	return p.Print(v)
}

// StatsRow is the table/JSON/YAML view of cache stats.
type StatsRow struct {
	Dir            string  `json:"dir" yaml:"dir"`
	EntryCount     int     `json:"entryCount" yaml:"entry_count"`
	TotalSizeBytes int64   `json:"totalSizeBytes" yaml:"total_size_bytes"`
	MaxSizeBytes   int64   `json:"maxSizeBytes" yaml:"max_size_bytes"`
	UsedPercent    float64 `json:"usedPercent" yaml:"used_percent"`
}

// PrintStats prints cache stats.
func (p *Printer) PrintStats(s StatsRow) error {
	if p.format != FormatTable {
		return p.Print(s)
	}
	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DIR\t%s\n", s.Dir)
	fmt.Fprintf(w, "ENTRIES\t%d\n", s.EntryCount)
	fmt.Fprintf(w, "SIZE\t%s / %s (%.1f%%)\n", HumanBytes(s.TotalSizeBytes), HumanBytes(s.MaxSizeBytes), s.UsedPercent)
	return w.Flush()
}

// PrintKeys prints one key per line, or a list for JSON/YAML.
func (p *Printer) PrintKeys(keys []string) error {
	if p.format != FormatTable {
		if keys == nil {
			keys = []string{}
		}
		return p.Print(keys)
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(p.writer, k); err != nil {
			return err
		}
	}
	return nil
}

// HumanBytes formats n with a binary unit suffix.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
