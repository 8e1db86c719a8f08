package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSX(t *testing.T) {
	svc := NewService(nil)
	long := strings.Repeat("a", MaxCellText+10)
	b, err := svc.XLSX(Sheet{
		Name:    "Report",
		Columns: []Column{{Header: "File", Width: 30}, {Header: "Chars"}, {Header: "Notes"}},
		Rows: [][]any{
			{"a.png", 42, "ok"},
			{"b.pdf", 7, long},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Report"}, f.GetSheetList())
	rows, err := f.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"File", "Chars", "Notes"}, rows[0])
	assert.Equal(t, []string{"a.png", "42", "ok"}, rows[1])
	assert.Equal(t, MaxCellText-1+len("…"), len(rows[2][2]))

	w, err := f.GetColWidth("Report", "A")
	require.NoError(t, err)
	assert.InDelta(t, 30, w, 0.01)
}

func TestXLSXDefaultSheet(t *testing.T) {
	b, err := NewService(nil).XLSX(Sheet{Columns: []Column{{Header: "x"}}})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Sheet1"}, f.GetSheetList())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "a", truncate("abc", 1))
}
