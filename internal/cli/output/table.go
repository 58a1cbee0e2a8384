package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that render as a table.
type TableRenderer interface {
	// Headers returns the column titles.
	Headers() []string
	// Rows returns one slice of cells per row.
	Rows() [][]string
}

// TableData collects rows for an ad-hoc table.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a TableData with the given column titles.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow appends one row of cells.
func (t *TableData) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Headers implements TableRenderer.
func (t *TableData) Headers() []string {
	return t.headers
}

// Rows implements TableRenderer.
func (t *TableData) Rows() [][]string {
	return t.rows
}

// PrintTable renders data to w as a borderless, left-aligned table
// with uppercased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}
