package occupancy

import (
	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
)

// Group is the status breakdown of one bucket (month, clinic or building).
type Group struct {
	Key string
	snapshot.Counts
}

// Stats are the panel indicators over the filtered scope.
type Stats struct {
	snapshot.Counts
	OccupancyRate   float64           `json:"occupancy_rate"`
	OperationalRate float64           `json:"operational_rate"`
	ReferenceDate   string            `json:"reference_date,omitempty"`
	Filters         map[string]string `json:"filters"`
}

// Breakdown is one row of an evolution or distribution table.
type Breakdown struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	Occupied      int     `json:"occupied"`
	Blocked       int     `json:"blocked"`
	Total         int     `json:"total"`
	OccupancyRate float64 `json:"occupancy_rate"`
}
