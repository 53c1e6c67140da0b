package ingest

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joabeoliveira/ocupacao/internal/httperr"
)

var (
	ErrInvalidFile       = httperr.New(http.StatusBadRequest, "invalid snapshot file")
	ErrEmptyFile         = httperr.New(http.StatusBadRequest, "snapshot file has no usable rows")
	ErrUnsupportedFormat = httperr.New(http.StatusBadRequest, "unsupported file format; send .csv or .xlsx")
	ErrInvalidDate       = httperr.New(http.StatusBadRequest, "invalid reference date")
)

// Formats recorded on snapshot_import.format.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a decoded spreadsheet: the header row and the data rows.
type Table struct {
	Headers []string
	Records [][]string
}

// Request is one upload to import.
type Request struct {
	FileName      string
	ContentType   string
	Data          []byte
	ReferenceDate string
	Actor         string
}

// Result summarises an accepted import.
type Result struct {
	ImportID         uuid.UUID `json:"import_id"`
	ReferenceDate    string    `json:"reference_date"`
	Label            string    `json:"label"`
	Format           string    `json:"format"`
	Rows             int       `json:"rows"`
	Skipped          int       `json:"skipped"`
	UnmappedHeaders  []string  `json:"unmapped_headers"`
	ReplacedExisting bool      `json:"replaced_existing"`
	ImportedAt       time.Time `json:"imported_at"`
}
