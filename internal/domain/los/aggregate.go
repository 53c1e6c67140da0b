package los

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
	"github.com/joabeoliveira/ocupacao/pkg/ratio"
)

const secondsPerDay = 86400

// stayKey identifies the patient behind a row: the medical record, else the
// health card, else the name. Rows with none of the three fall back to
// their bed so they never merge with each other.
func stayKey(r snapshot.Row) string {
	if v := strings.TrimSpace(r.MedicalRecord); v != "" {
		return "mr:" + v
	}
	if v := strings.TrimSpace(r.CNS); v != "" {
		return "cns:" + v
	}
	if v := strings.TrimSpace(r.PatientName); v != "" {
		return "name:" + v
	}
	return "bed:" + strconv.Itoa(r.WardCode) + "/" + r.Bed
}

// DaysBetween returns the whole days from admission to ref, never negative.
func DaysBetween(admission *time.Time, ref time.Time) int {
	if admission == nil {
		return 0
	}
	a := time.Date(admission.Year(), admission.Month(), admission.Day(), 0, 0, 0, 0, time.UTC)
	r := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	// Unix seconds avoid the ~292 year ceiling of time.Duration.
	d := int((r.Unix() - a.Unix()) / secondsPerDay)
	if d < 0 {
		return 0
	}
	return d
}

// GroupStays coalesces rows into one stay per patient. rows must be ordered
// by reference date, ward code and bed; the last row seen supplies the
// descriptive fields and the earliest admission date wins.
func GroupStays(rows []snapshot.Row, ref time.Time) []Stay {
	index := map[string]int{}
	var stays []Stay
	for _, r := range rows {
		key := stayKey(r)
		i, ok := index[key]
		if !ok {
			i = len(stays)
			index[key] = i
			stays = append(stays, Stay{Key: key})
		}
		s := &stays[i]
		s.Name = strings.TrimSpace(r.PatientName)
		s.MedicalRecord = strings.TrimSpace(r.MedicalRecord)
		s.CNS = strings.TrimSpace(r.CNS)
		s.Age = r.Age
		s.Sex = r.Sex
		s.Clinic = r.WardName
		s.WardCode = r.WardCode
		s.Bed = r.Bed
		if r.AdmissionDate != nil && (s.AdmissionDate == nil || r.AdmissionDate.Before(*s.AdmissionDate)) {
			d := *r.AdmissionDate
			s.AdmissionDate = &d
		}
	}
	for i := range stays {
		stays[i].Days = DaysBetween(stays[i].AdmissionDate, ref)
	}
	return stays
}

// SortByDays orders stays by day-count descending, then name, then key.
func SortByDays(stays []Stay) {
	sort.SliceStable(stays, func(i, j int) bool {
		a, b := stays[i], stays[j]
		if a.Days != b.Days {
			return a.Days > b.Days
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})
}

// LongStays returns the stays above LongStayDays, keeping order.
func LongStays(stays []Stay) []Stay {
	out := lo.Filter(stays, func(s Stay, _ int) bool { return s.IsLongStay() })
	if out == nil {
		out = []Stay{}
	}
	return out
}

// Median returns the middle day-count; for an even count the mean of the
// two middle values rounded half away from zero. Empty input yields 0.
func Median(days []int) int {
	if len(days) == 0 {
		return 0
	}
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	sum := decimal.NewFromInt(int64(sorted[mid-1] + sorted[mid]))
	return int(sum.Div(decimal.NewFromInt(2)).Round(0).IntPart())
}

type bucketDef struct {
	label string
	min   int
	max   int
}

// bucketDefs partition [0, inf). The last bucket is unbounded.
var bucketDefs = []bucketDef{
	{"0-7", 0, 7},
	{"8-14", 8, 14},
	{"15-30", 15, 30},
	{"31-60", 31, 60},
	{"61-90", 61, 90},
	{">90", 91, -1},
}

func bucketIndex(days int) int {
	for i, b := range bucketDefs {
		if b.max < 0 || days <= b.max {
			return i
		}
	}
	return len(bucketDefs) - 1
}

// Buckets builds the day-count histogram. Every stay lands in exactly one
// bucket.
func Buckets(stays []Stay) []Bucket {
	out := make([]Bucket, len(bucketDefs))
	for i, b := range bucketDefs {
		out[i] = Bucket{Label: b.label, Min: b.min}
		if b.max >= 0 {
			max := b.max
			out[i].Max = &max
		}
	}
	for _, s := range stays {
		out[bucketIndex(s.Days)].Count++
	}
	return out
}

// Summarize computes the headline indicators over stays.
func Summarize(stays []Stay) Summary {
	days := lo.Map(stays, func(s Stay, _ int) int { return s.Days })
	sum := Summary{
		Count:      len(stays),
		MeanDays:   ratio.Mean(days),
		MedianDays: Median(days),
		Buckets:    Buckets(stays),
	}
	for _, s := range stays {
		if !s.IsLongStay() {
			continue
		}
		sum.LongStay++
		if s.Age == nil {
			continue
		}
		switch {
		case *s.Age >= 60:
			sum.LongStayElderly++
		case *s.Age < 18:
			sum.LongStayPediatric++
		}
	}
	return sum
}
