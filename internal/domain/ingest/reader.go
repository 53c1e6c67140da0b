package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	zipMagic  = []byte("PK\x03\x04")
	oleMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0}
	csvLikeEx = map[string]bool{"": true, ".csv": true, ".txt": true}
)

// DetectFormat picks the decoder for an upload from its content, falling
// back to the file extension.
func DetectFormat(fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic), ext == ".xls":
		return "", fmt.Errorf("legacy .xls workbook: %w", ErrUnsupportedFormat)
	case ext == ".xlsx":
		return FormatXLSX, nil
	case csvLikeEx[ext]:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("extension %q: %w", ext, ErrUnsupportedFormat)
}

// Read decodes an upload into a Table.
func Read(fileName string, data []byte) (*Table, string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", ErrEmptyFile
	}
	format, err := DetectFormat(fileName, data)
	if err != nil {
		return nil, "", err
	}

	var t *Table
	switch format {
	case FormatXLSX:
		t, err = ReadXLSX(data)
	default:
		t, err = ReadCSV(data)
	}
	if err != nil {
		return nil, "", err
	}
	if len(t.Records) == 0 {
		return nil, "", fmt.Errorf("header only: %w", ErrEmptyFile)
	}
	return t, format, nil
}

// DecodeText returns data as UTF-8. Payloads that are not valid UTF-8 are
// taken to be Latin-1, the encoding of spreadsheets exported by the
// hospital's Windows workstations.
func DecodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}
	return out, nil
}

// SniffDelimiter chooses between ',' and ';' by counting both in the
// header line.
func SniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// ReadCSV parses a comma or semicolon separated export.
func ReadCSV(data []byte) (*Table, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidFile)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = SniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %v: %w", err, ErrInvalidFile)
	}
	return tableFrom(records)
}

// ReadXLSX reads the first sheet of a workbook. Cells are read raw so
// numeric identifiers keep every digit and dates arrive as serial numbers.
func ReadXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %v: %w", err, ErrInvalidFile)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrInvalidFile)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %v: %w", sheet, err, ErrInvalidFile)
	}
	return tableFrom(rows)
}

func tableFrom(records [][]string) (*Table, error) {
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	t := &Table{Headers: records[0]}
	for _, rec := range records[1:] {
		if !blank(rec) {
			t.Records = append(t.Records, rec)
		}
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
