// Package los computes length-of-stay indicators over occupied beds:
// per-patient stays, summary statistics, a masked paginated listing and an
// unmasked spreadsheet export.
package los

import (
	"time"
)

// LongStayDays is the threshold above which a stay counts as long.
const LongStayDays = 30

// Stay is one patient's stay derived from the occupied-bed rows of a scope.
type Stay struct {
	Key           string     `json:"-"`
	Name          string     `json:"name"`
	MedicalRecord string     `json:"-"`
	CNS           string     `json:"-"`
	Age           *int       `json:"age"`
	Sex           string     `json:"sex"`
	Clinic        string     `json:"clinic"`
	WardCode      int        `json:"ward_code"`
	Bed           string     `json:"bed"`
	AdmissionDate *time.Time `json:"-"`
	Days          int        `json:"days"`
}

// IsLongStay reports whether the stay exceeds LongStayDays.
func (s Stay) IsLongStay() bool {
	return s.Days > LongStayDays
}

// Bucket is one histogram bar. Max is inclusive; a nil Max is unbounded.
type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   *int   `json:"max"`
	Count int    `json:"count"`
}

// Summary aggregates every stay in scope.
type Summary struct {
	Count             int      `json:"count"`
	MeanDays          float64  `json:"mean_days"`
	MedianDays        int      `json:"median_days"`
	LongStay          int      `json:"long_stay"`
	LongStayElderly   int      `json:"long_stay_elderly"`
	LongStayPediatric int      `json:"long_stay_pediatric"`
	Buckets           []Bucket `json:"buckets"`
}

// ListedStay is a stay as shown in the listing: name masked, dates
// formatted.
type ListedStay struct {
	Name          string `json:"name"`
	Age           *int   `json:"age"`
	Sex           string `json:"sex"`
	Clinic        string `json:"clinic"`
	WardCode      int    `json:"ward_code"`
	Bed           string `json:"bed"`
	AdmissionDate string `json:"admission_date"`
	Days          int    `json:"days"`
}

// Listing is one page of the selected view.
type Listing struct {
	View    string       `json:"view"`
	Items   []ListedStay `json:"items"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Pages   int          `json:"pages"`
	HasMore bool         `json:"has_more"`
}

// Report is the response of the length-of-stay endpoint.
type Report struct {
	ReferenceDate string            `json:"reference_date"`
	Label         string            `json:"label"`
	Summary       Summary           `json:"summary"`
	Listing       Listing           `json:"listing"`
	Filters       map[string]string `json:"filters"`
}

// ExportFile is a generated spreadsheet.
type ExportFile struct {
	FileName string
	Data     []byte
	Rows     int
}
