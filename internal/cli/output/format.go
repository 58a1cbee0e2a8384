// Package output renders CLI results as tables, JSON, or YAML, and
// prints colored status messages.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format selects how a command renders its result.
type Format string

const (
	// FormatTable renders a human-readable table.
	FormatTable Format = "table"
	// FormatJSON renders indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses the value of an --output flag. The empty string
// means table; "yml" is accepted for YAML.
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

// String returns the format as its flag value.
func (f Format) String() string {
	return string(f)
}

const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiReset  = "\033[0m"
)

// Printer writes one-line status messages, colored when enabled.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color}
}

// Success prints a green success message.
func (p *Printer) Success(msg string) {
	p.print(ansiGreen, msg)
}

// Warning prints a yellow warning message.
func (p *Printer) Warning(msg string) {
	p.print(ansiYellow, msg)
}

// Error prints a red error message.
func (p *Printer) Error(msg string) {
	p.print(ansiRed, msg)
}

func (p *Printer) print(color, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s%s\n", color, msg, ansiReset)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}
