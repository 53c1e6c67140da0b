package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
)

// Report describes what Normalize dropped.
type Report struct {
	Skipped  int
	Unmapped []string
}

// cellDateLayouts are tried in order; day-first always wins over
// month-first.
var cellDateLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006",
	"2/1/2006 15:04",
	"02/01/06",
	"02-01-2006",
	"02-01-2006 15:04:05",
	"02.01.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// Excel serial dates between 1900-01-01 and 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// cleanText trims v and maps the spreadsheet null spellings to "".
func cleanText(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "nat", "none", "null", "-":
		return ""
	}
	return v
}

// cleanID drops the ".0" a float round-trip leaves on numeric identifiers.
func cleanID(v string) string {
	return strings.TrimSuffix(cleanText(v), ".0")
}

// ParseCellDate parses a date cell day-first. Unparseable values yield nil.
func ParseCellDate(v string) *time.Time {
	v = cleanText(v)
	if v == "" {
		return nil
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ParseAge reads the leading integer of an age cell ("67", "67.0",
// "67 anos").
func ParseAge(v string) *int {
	v = cleanText(v)
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return nil
	}
	return &n
}

// parseWardCode accepts integers and integral floats ("12", "12.0").
func parseWardCode(v string) (int, bool) {
	v = cleanText(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Normalize maps a decoded table onto snapshot rows. Rows without a numeric
// NUM ENF are skipped, as are repeated ward/bed pairs after the first.
func Normalize(t *Table) ([]snapshot.Row, Report, error) {
	fields := make([]string, len(t.Headers))
	var rep Report
	hasWard := false
	for i, h := range t.Headers {
		f, ok := FieldFor(h)
		if !ok {
			if name := strings.TrimSpace(h); name != "" {
				rep.Unmapped = append(rep.Unmapped, name)
			}
			continue
		}
		fields[i] = f
		hasWard = hasWard || f == fieldWardCode
	}
	if !hasWard {
		return nil, rep, fmt.Errorf("missing NUM ENF column: %w", ErrInvalidFile)
	}
	rep.Unmapped = lo.Uniq(rep.Unmapped)
	sort.Strings(rep.Unmapped)

	rows := make([]snapshot.Row, 0, len(t.Records))
	seen := map[string]bool{}
	for _, rec := range t.Records {
		row, ok := normalizeRecord(fields, rec)
		if !ok {
			rep.Skipped++
			continue
		}
		key := strconv.Itoa(row.WardCode) + "/" + row.Bed
		if seen[key] {
			rep.Skipped++
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	return rows, rep, nil
}

func normalizeRecord(fields []string, rec []string) (snapshot.Row, bool) {
	var (
		row    snapshot.Row
		wardOK bool
	)
	for i, f := range fields {
		if f == "" || i >= len(rec) {
			continue
		}
		raw := rec[i]
		switch f {
		case fieldWardCode:
			row.WardCode, wardOK = parseWardCode(raw)
		case fieldBed:
			row.Bed = cleanID(raw)
		case fieldWardName:
			row.WardName = cleanText(raw)
		case fieldStatus:
			row.StatusRaw = cleanText(raw)
		case fieldAIH:
			row.AIH = cleanID(raw)
		case fieldCNS:
			row.CNS = cleanID(raw)
		case fieldMedicalRecord:
			row.MedicalRecord = cleanID(raw)
		case fieldPatientName:
			row.PatientName = cleanText(raw)
		case fieldSex:
			row.Sex = cleanText(raw)
		case fieldBirthDate:
			row.BirthDate = ParseCellDate(raw)
		case fieldAge:
			row.Age = ParseAge(raw)
		case fieldAdmission:
			row.AdmissionDate = ParseCellDate(raw)
		case fieldBedAdmission:
			row.BedAdmissionDate = ParseCellDate(raw)
		case fieldBlockingReason:
			row.BlockingReason = cleanText(raw)
		case fieldBlockingDate:
			row.BlockingDate = ParseCellDate(raw)
		case fieldReservationReq:
			row.ReservationRequestedAt = ParseCellDate(raw)
		case fieldReservationExp:
			row.ReservationExpectedAt = ParseCellDate(raw)
		case fieldFollowUp:
			row.FollowUp = cleanText(raw)
		case fieldCID10:
			row.CID10 = cleanText(raw)
		case fieldSERCode:
			row.SERCode = cleanID(raw)
		case fieldProfile:
			row.Profile = cleanText(raw)
		case fieldNotes:
			row.Notes = cleanText(raw)
		default:
			if v := cleanText(raw); v != "" {
				if row.Attributes == nil {
					row.Attributes = map[string]string{}
				}
				row.Attributes[f] = v
			}
		}
	}
	if !wardOK {
		return snapshot.Row{}, false
	}
	row.Status = snapshot.CanonicalStatus(row.StatusRaw)
	return row, true
}
