package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// headerScanRows is how many non-empty rows header detection looks at
const headerScanRows = 10

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// ErrEmpty is returned when the sheet has no non-empty row
var ErrEmpty = errors.New("spreadsheet has no data")

// Row is a data row with its 1-based row number in the source sheet
type Row struct {
	Number int
	Cells  []string
}

// Table is a parsed sheet: the detected header row and the rows below it
type Table struct {
	Headers   []string
	HeaderRow int
	Rows      []Row
}

// Cell returns the trimmed value of column col in row, or "" when the row
// is shorter.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[col])
}

// Column returns the index of header, matching case-insensitively, or -1
func (t *Table) Column(header string) int {
	want := normalize(header)
	for i, h := range t.Headers {
		if normalize(h) == want {
			return i
		}
	}
	return -1
}

// Read parses a CSV or XLSX file, choosing the format by file extension,
// and detects its header row against vocab.
func Read(filename string, r io.Reader, vocab Vocabulary) (*Table, error) {
	var raw [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		raw, err = ReadCSV(r)
	case ".xlsx", ".xlsm":
		raw, err = ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	return NewTable(raw, vocab)
}

// ReadCSV reads every record. Ragged rows are allowed.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	if sniffSemicolon(data) {
		reader.Comma = ';'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}

// sniffSemicolon reports whether the first line uses ';' as separator, as
// spreadsheets exported with a comma decimal locale do.
func sniffSemicolon(data []byte) bool {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	return bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(","))
}

// ReadXLSX reads all rows of the first sheet
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// NewTable picks the header row among raw and keeps the non-empty rows
// below it. Row numbers are 1-based positions in raw.
func NewTable(raw [][]string, vocab Vocabulary) (*Table, error) {
	headerIdx := DetectHeader(raw, vocab)
	if headerIdx < 0 {
		return nil, ErrEmpty
	}

	headers := make([]string, len(raw[headerIdx]))
	for i, h := range raw[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	t := &Table{Headers: headers, HeaderRow: headerIdx + 1}
	for i := headerIdx + 1; i < len(raw); i++ {
		if isBlank(raw[i]) {
			continue
		}
		t.Rows = append(t.Rows, Row{Number: i + 1, Cells: raw[i]})
	}
	return t, nil
}

// DetectHeader returns the index of the row with the most vocabulary hits
// among the first non-empty rows, the first non-empty row when nothing
// matches, or -1 for an empty sheet. Ties go to the earlier row.
func DetectHeader(raw [][]string, vocab Vocabulary) int {
	best, bestHits := -1, 0
	first := -1
	seen := 0

	for i, row := range raw {
		if isBlank(row) {
			continue
		}
		if first < 0 {
			first = i
		}

		if hits := vocab.Hits(row); hits > bestHits {
			best, bestHits = i, hits
		}

		seen++
		if seen >= headerScanRows {
			break
		}
	}

	if best < 0 {
		return first
	}
	return best
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
