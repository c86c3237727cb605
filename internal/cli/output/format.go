// Package output renders umsctl results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// Printer handles formatted output to a writer.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a new Printer.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

// Writer returns the printer's output writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print outputs data in the configured format. Table output requires data
// to implement TableRenderer and falls back to JSON otherwise.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, r)
		}
		return p.printJSON(data)
	case FormatJSON:
		return p.printJSON(data)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Success prints a success message, green when color is on.
func (p *Printer) Success(msg string) {
	p.colored("\033[32m", msg)
}

// Warning prints a warning message, yellow when color is on.
func (p *Printer) Warning(msg string) {
	p.colored("\033[33m", msg)
}

func (p *Printer) colored(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
