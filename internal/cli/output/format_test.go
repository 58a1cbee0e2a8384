package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "table", FormatTable.String())
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "yaml", FormatYAML.String())
}

func TestPrinterColored(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, true)

	printer.Success("saved")

	out := buf.String()
	assert.Equal(t, "\033[32msaved\033[0m\n", out)
}

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, false)

	printer.Success("saved")
	printer.Warning("careful")
	printer.Error("broken")

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "saved\n")
	assert.Contains(t, out, "careful\n")
	assert.Contains(t, out, "broken\n")
}

func TestPrinterColors(t *testing.T) {
	tests := []struct {
		name  string
		print func(*Printer, string)
		code  string
	}{
		{name: "success is green", print: (*Printer).Success, code: "\033[32m"},
		{name: "warning is yellow", print: (*Printer).Warning, code: "\033[33m"},
		{name: "error is red", print: (*Printer).Error, code: "\033[31m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(NewPrinter(&buf, true), "msg")
			assert.Contains(t, buf.String(), tt.code+"msg")
		})
	}
}
