package room

import (
	"encoding/json"
	"testing"

	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/tuning"
)

// Fixture building types with arithmetic-friendly numbers. build_days is zero
// unless a test exercises the construction pipeline, so placements complete
// immediately.
const testCatalogJSON = `[
  {
    "id": "apt",
    "name": "Apartment",
    "category": "residential",
    "economics": {"build_cost": 900, "max_revenue": 80, "maintenance_base": 10, "decay_rate_pct_per_day": 0.15, "build_days": 0},
    "resources": {"housing_provided": 10}
  },
  {
    "id": "slow_apt",
    "name": "Apartment (phased)",
    "category": "residential",
    "economics": {"build_cost": 900, "max_revenue": 80, "maintenance_base": 10, "build_days": 1},
    "resources": {"housing_provided": 10}
  },
  {
    "id": "workshop",
    "name": "Workshop",
    "category": "commercial",
    "economics": {"build_cost": 700, "max_revenue": 100, "maintenance_base": 10, "decay_rate_pct_per_day": 0.2, "build_days": 0},
    "resources": {"jobs_provided": 10}
  },
  {
    "id": "farm",
    "name": "Farm",
    "category": "agriculture",
    "economics": {"build_cost": 350, "max_revenue": 40, "maintenance_base": 4, "build_days": 0},
    "resources": {"jobs_provided": 3, "food_provided": 12}
  },
  {
    "id": "plant",
    "name": "Power Plant",
    "category": "infrastructure",
    "economics": {"build_cost": 1500, "max_revenue": 120, "maintenance_base": 20, "build_days": 0},
    "resources": {"jobs_provided": 8, "energy_provided": 50}
  },
  {
    "id": "heater",
    "name": "Greenhouse",
    "category": "agriculture",
    "economics": {"build_cost": 400, "max_revenue": 50, "maintenance_base": 5, "build_days": 0},
    "resources": {"food_provided": 6, "energy_required": 4}
  },
  {
    "id": "clinic",
    "name": "Clinic",
    "category": "healthcare",
    "economics": {"build_cost": 800, "max_revenue": 60, "maintenance_base": 12, "build_days": 0},
    "resources": {"jobs_provided": 5, "healthcare_provided": 15}
  },
  {
    "id": "school",
    "name": "School",
    "category": "education",
    "economics": {"build_cost": 1000, "maintenance_base": 15, "build_days": 0},
    "resources": {"jobs_provided": 6, "education_provided": 30}
  },
  {
    "id": "park",
    "name": "Park",
    "category": "recreation",
    "economics": {"build_cost": 150, "maintenance_base": 2, "build_days": 0},
    "livability": {"culture": 0.3, "environment": 0.4}
  },
  {
    "id": "stop",
    "name": "Transit Stop",
    "category": "infrastructure",
    "economics": {"build_cost": 300, "maintenance_base": 3, "build_days": 0},
    "livability": {"mobility": 0.5}
  }
]`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cats, err := catalog.Parse([]byte(testCatalogJSON))
	if err != nil {
		t.Fatalf("parse test catalog: %v", err)
	}
	return cats
}

func testTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.DayTicks = 2
	return t
}

// newTestRoom builds a loop-less room driven by StepOnce/JoinDirect.
func newTestRoom(t *testing.T) *Room {
	t.Helper()
	tune := testTuning()
	return New(Config{
		ID:         "test_room",
		Rows:       tune.GridRows,
		Cols:       tune.GridCols,
		TickRateHz: tune.TickRateHz,
		DayTicks:   tune.DayTicks,
	}, tune, testCatalog(t), nil, nil, nil)
}

// snapshotJSON serializes the room's committed state for before/after diffs.
func snapshotJSON(r *Room) (string, error) {
	b, err := json.Marshal(r.exportSnapshot())
	return string(b), err
}

// place drops a completed building onto the grid directly, bypassing the
// transaction path, and flags the aggregates for recomputation.
func place(r *Room, co Coord, owner, typeID string) {
	p := r.grid.At(co)
	p.Owner = owner
	p.Building = &BuildingInstance{TypeID: typeID}
	r.cache.MarkDirty(co)
	r.cache.InvalidateLandValues()
	r.sdDirty = true
}
