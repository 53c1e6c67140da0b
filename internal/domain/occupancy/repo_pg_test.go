package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joabeoliveira/ocupacao/internal/domain/snapshot"
)

func TestBuildingCase(t *testing.T) {
	expr, args := buildingCase(snapshot.Buildings{{Code: 1, Min: 1, Max: 299}, {Code: 2, Min: 300, Max: 999}})

	assert.Equal(t, "CASE WHEN ward_code BETWEEN $1 AND $2 THEN $3::text WHEN ward_code BETWEEN $4 AND $5 THEN $6::text END", expr)
	assert.Equal(t, []interface{}{1, 299, "1", 300, 999, "2"}, args)
}
