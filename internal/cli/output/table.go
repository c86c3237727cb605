package output

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

func newTable(w io.Writer, sep string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(sep)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintTable writes data as a formatted table to the writer.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w, "")
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// TableData is an ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow adds a row to the table.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }
func (t *TableData) Rows() [][]string  { return t.rows }

// SimpleTable prints a key: value table.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	table.SetAutoFormatHeaders(false)
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

// HexDump renders sector data as offset / hex / ascii rows of 16 bytes.
// base is the byte offset of data[0] on the device.
type HexDump struct {
	Base uint64 `json:"base" yaml:"base"`
	Data []byte `json:"data" yaml:"data"`
}

func (h HexDump) Headers() []string { return []string{"Offset", "Hex", "ASCII"} }

func (h HexDump) Rows() [][]string {
	rows := make([][]string, 0, (len(h.Data)+15)/16)
	for off := 0; off < len(h.Data); off += 16 {
		end := min(off+16, len(h.Data))
		line := h.Data[off:end]

		ascii := make([]byte, len(line))
		for i, b := range line {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			ascii[i] = b
		}

		var hx strings.Builder
		for i, b := range line {
			if i > 0 {
				hx.WriteByte(' ')
			}
			hx.WriteString(hex.EncodeToString([]byte{b}))
		}

		rows = append(rows, []string{fmt.Sprintf("%08x", h.Base+uint64(off)), hx.String(), string(ascii)})
	}
	return rows
}
