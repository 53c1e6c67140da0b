package snapshot

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joabeoliveira/ocupacao/internal/httperr"
)

var (
	ErrNoData         = httperr.New(http.StatusNotFound, "no data for the requested scope")
	ErrImportNotFound = httperr.New(http.StatusNotFound, "import not found")
	ErrSameDate       = httperr.New(http.StatusBadRequest, "new date must differ from the current date")
)

// Status is the canonical bed status stored in bed_snapshot.status.
type Status string

const (
	StatusOccupied Status = "OCUPADO"
	StatusFree     Status = "LIVRE"
	StatusCeded    Status = "CEDIDO"
	StatusBlocked  Status = "IMPEDIDO"
	StatusReserved Status = "RESERVADO"
	StatusOther    Status = "OUTRO"
)

// CanonicalStatus maps a raw STATUS cell to a canonical status. Any value
// mentioning IMPEDIDO or BLOQUEADO counts as blocked.
func CanonicalStatus(raw string) Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StatusOther
	case strings.Contains(s, "IMPEDIDO"), strings.Contains(s, "BLOQUEADO"):
		return StatusBlocked
	case strings.HasPrefix(s, "OCUPADO"):
		return StatusOccupied
	case s == "LIVRE", s == "VAGO":
		return StatusFree
	case strings.HasPrefix(s, "CEDIDO"):
		return StatusCeded
	case strings.HasPrefix(s, "RESERVADO"):
		return StatusReserved
	}
	return StatusOther
}

// Row maps to one bed_snapshot row: one bed on one reference date.
// Empty strings and nil pointers are stored as NULL.
type Row struct {
	ID                     int64             `json:"id"`
	ReferenceDate          time.Time         `json:"reference_date"`
	WardCode               int               `json:"ward_code"`
	Bed                    string            `json:"bed"`
	WardName               string            `json:"ward_name"`
	Status                 Status            `json:"status"`
	StatusRaw              string            `json:"status_raw,omitempty"`
	AIH                    string            `json:"aih,omitempty"`
	CNS                    string            `json:"cns,omitempty"`
	PatientName            string            `json:"patient_name,omitempty"`
	Sex                    string            `json:"sex,omitempty"`
	BirthDate              *time.Time        `json:"birth_date,omitempty"`
	Age                    *int              `json:"age,omitempty"`
	AdmissionDate          *time.Time        `json:"admission_date,omitempty"`
	BedAdmissionDate       *time.Time        `json:"bed_admission_date,omitempty"`
	MedicalRecord          string            `json:"medical_record,omitempty"`
	CID10                  string            `json:"cid10,omitempty"`
	SERCode                string            `json:"ser_code,omitempty"`
	Profile                string            `json:"profile,omitempty"`
	BlockingReason         string            `json:"blocking_reason,omitempty"`
	BlockingDate           *time.Time        `json:"blocking_date,omitempty"`
	ReservationRequestedAt *time.Time        `json:"reservation_requested_at,omitempty"`
	ReservationExpectedAt  *time.Time        `json:"reservation_expected_at,omitempty"`
	FollowUp               string            `json:"follow_up,omitempty"`
	Notes                  string            `json:"notes,omitempty"`
	Attributes             map[string]string `json:"attributes,omitempty"`
	ImportID               uuid.UUID         `json:"import_id"`
}

// Import maps to snapshot_import: one accepted upload.
type Import struct {
	ID            uuid.UUID `json:"id"`
	ReferenceDate time.Time `json:"reference_date"`
	FileName      string    `json:"file_name"`
	Format        string    `json:"format"`
	RowCount      int       `json:"row_count"`
	SkippedCount  int       `json:"skipped_count"`
	BlobKey       string    `json:"blob_key,omitempty"`
	ImportedBy    string    `json:"imported_by,omitempty"`
	ImportedAt    time.Time `json:"imported_at"`
}

// Counts are bed totals per canonical status over some scope.
type Counts struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
	Free     int `json:"free"`
	Ceded    int `json:"ceded"`
	Blocked  int `json:"blocked"`
	Reserved int `json:"reserved"`
}

// HistoryEntry summarises one reference date.
type HistoryEntry struct {
	ReferenceDate string  `json:"reference_date"`
	Label         string  `json:"label"`
	Total         int     `json:"total"`
	Occupied      int     `json:"occupied"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

// DayStats are the headline indicators of one reference date.
type DayStats struct {
	ReferenceDate string `json:"reference_date"`
	Label         string `json:"label"`
	Counts
	OccupancyRate float64 `json:"occupancy_rate"`
}

// ChartPoint is one day of the occupancy trend chart.
type ChartPoint struct {
	ReferenceDate string  `json:"reference_date"`
	Label         string  `json:"label"`
	Total         int     `json:"total"`
	Occupied      int     `json:"occupied"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

const (
	DateLayout  = "2006-01-02"
	LabelLayout = "02/01/2006"
	ShortLabel  = "02/01"
)

// ChartDays is how many reference dates the trend chart shows.
const ChartDays = 7

// DateCounts are the counts of a single reference date.
type DateCounts struct {
	ReferenceDate time.Time
	Counts
}
