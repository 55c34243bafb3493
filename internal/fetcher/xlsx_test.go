package fetcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeRatingsFile(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Coverage")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"Ticker", "Strong Buy", "Buy", "Hold", "Sell", "Strong Sell", "As Of"} {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}

	path := filepath.Join(t.TempDir(), "ratings.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadRatingsXLSX(t *testing.T) {
	path := writeRatingsFile(t, [][]string{
		{"acme", "4", "4", "0", "0", "0", "2026-02-01"},
		{"BETA", "1", "2", "5", "1", "0", "01/15/2026"},
	})

	rows, rejected, err := ReadRatingsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, rows, 2)

	assert.Equal(t, "ACME", rows[0].Ticker)
	assert.Equal(t, 8, rows[0].Counts.Total())
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), rows[0].SourceDate)

	assert.Equal(t, "BETA", rows[1].Ticker)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), rows[1].SourceDate)
}

func TestReadRatingsXLSXSkipsBadRows(t *testing.T) {
	path := writeRatingsFile(t, [][]string{
		{"acme", "4", "4", "0", "0", "0", "2026-02-01"},
		{"", "1", "1", "1", "1", "1", "2026-02-01"},
		{"GAMMA", "x", "1", "1", "1", "1", "2026-02-01"},
		{"DELTA", "1", "1", "1", "1", "1", "someday"},
	})

	rows, rejected, err := ReadRatingsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, rejected, 3)
}

func TestReadRatingsXLSXFloatCounts(t *testing.T) {
	path := writeRatingsFile(t, [][]string{
		{"acme", "4.0", "4.0", "0.0", "0.0", "0.0", "2026-02-01"},
	})

	rows, rejected, err := ReadRatingsXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Counts.StrongBuy)
}

func TestReadRatingsXLSXMissingSheet(t *testing.T) {
	path := writeRatingsFile(t, nil)

	_, _, err := ReadRatingsXLSX(path, XLSXOptions{SheetName: "Nope"})
	require.Error(t, err)
}
