package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"TABLE", FormatTable, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Unit", "Sectors")
	table.AddRow("0", "2048")
	table.AddRow("1", "4096")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "UNIT")
	assert.Contains(t, out, "SECTORS")
	assert.Contains(t, out, "4096")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{{"Device", "/dev/usb2"}}))
	assert.Contains(t, buf.String(), "/dev/usb2")
}

func TestPrinterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	require.NoError(t, p.Print(map[string]int{"status": 0}))
	assert.JSONEq(t, `{"status":0}`, buf.String())
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML, false)
	require.NoError(t, p.Print(struct {
		Unit uint32 `yaml:"unit"`
	}{Unit: 1}))
	assert.Equal(t, "unit: 1\n", buf.String())
}

func TestHexDumpRows(t *testing.T) {
	data := append([]byte("WBFS"), make([]byte, 16)...)
	rows := HexDump{Base: 0x200, Data: data}.Rows()

	require.Len(t, rows, 2)
	assert.Equal(t, "00000200", rows[0][0])
	assert.Equal(t, "57 42 46 53 00 00 00 00 00 00 00 00 00 00 00 00", rows[0][1])
	assert.Equal(t, "WBFS............", rows[0][2])
	assert.Equal(t, "00000210", rows[1][0])
	assert.Equal(t, "00 00 00 00", rows[1][1])
}
