package fetcher

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/thesis-cli/internal/model"
)

// RatingsRow is one imported coverage snapshot.
type RatingsRow struct {
	Ticker     string
	Counts     model.RatingCounts
	SourceDate time.Time
}

// XLSXOptions configures the ratings spreadsheet parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // header rows to skip, default 1
}

var importDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/06", "01-02-06"}

// ReadRatingsXLSX parses a broker coverage export. Expected columns:
// ticker, strong buy, buy, hold, sell, strong sell, as-of date. Rows
// that fail to parse are skipped and returned separately so a single
// bad row does not abort the import.
func ReadRatingsXLSX(path string, opts XLSXOptions) ([]RatingsRow, []error, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}

	skip := opts.SkipRows
	if skip == 0 {
		skip = 1
	}

	var rows []RatingsRow
	var rejected []error
	for i, row := range sheet.Rows {
		if i < skip {
			continue
		}
		cells := rowToStrings(row)
		if isBlankRow(cells) {
			continue
		}

		parsed, err := parseRatingsRow(cells)
		if err != nil {
			rejected = append(rejected, eris.Wrapf(err, "row %d", i+1))
			continue
		}
		rows = append(rows, parsed)
	}
	return rows, rejected, nil
}

func parseRatingsRow(cells []string) (RatingsRow, error) {
	var r RatingsRow
	if len(cells) < 7 {
		return r, eris.Errorf("expected 7 columns, got %d", len(cells))
	}

	r.Ticker = strings.ToUpper(strings.TrimSpace(cells[0]))
	if r.Ticker == "" {
		return r, eris.New("ticker is empty")
	}

	counts := [5]int{}
	for i := range counts {
		n, err := parseCount(cells[i+1])
		if err != nil {
			return r, eris.Wrapf(err, "column %d", i+2)
		}
		counts[i] = n
	}
	r.Counts = model.RatingCounts{
		StrongBuy:  counts[0],
		Buy:        counts[1],
		Hold:       counts[2],
		Sell:       counts[3],
		StrongSell: counts[4],
	}
	if err := r.Counts.Validate(); err != nil {
		return r, err
	}

	date, err := parseImportDate(cells[6])
	if err != nil {
		return r, err
	}
	r.SourceDate = date
	return r, nil
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// Excel renders integers as floats ("4.0") depending on cell format.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "bad count %q", s)
	}
	return n, nil
}

func parseImportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable date %q", s)
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
