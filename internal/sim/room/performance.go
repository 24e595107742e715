package room

import (
	"math"

	"metrogrid.gg/internal/sim/catalog"
)

const decayPenaltyWeight = 0.5

// Need is one derived requirement of a building and its satisfaction against
// city-wide supply.
type Need struct {
	Name     string  `json:"name"`
	Resource string  `json:"resource"`
	Required float64 `json:"required"`
	Ratio    float64 `json:"ratio"`
}

// Performance is the per-building operating result.
type Performance struct {
	Efficiency  float64 `json:"efficiency"`
	Revenue     float64 `json:"revenue"`
	Maintenance float64 `json:"maintenance"`
	LandTax     float64 `json:"land_tax"`
	Decay       float64 `json:"decay"`
	AgeDays     int     `json:"age_days"`
	Needs       []Need  `json:"needs"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// NetIncome is revenue minus maintenance and land tax.
func (p Performance) NetIncome() float64 {
	return p.Revenue - p.Maintenance - p.LandTax
}

// deriveNeeds extracts a building's requirement list from its catalog entry.
// Each need is satisfied against the city totals of its backing resource:
// workers come out of the housing pool, residents need jobs and food, and
// powered buildings need energy.
func deriveNeeds(def catalog.BuildingDef, sd SupplyDemandTable) []Need {
	var needs []Need
	add := func(name, res string, required float64) {
		needs = append(needs, Need{
			Name:     name,
			Resource: res,
			Required: required,
			Ratio:    sd.Ratio(res),
		})
	}

	if jobs := def.Resources.JobsProvided; jobs > 0 {
		add("workers", catalog.ResHousing, jobs)
	}
	if cap := def.Resources.HousingProvided; cap > 0 {
		add("jobs", catalog.ResJobs, math.Floor(cap*WorkersPerBedroom))
		add("food", catalog.ResFood, cap)
	}
	if e := def.Resources.EnergyRequired; e > 0 {
		add("energy", catalog.ResEnergy, e)
	}
	return needs
}

// ComputePerformance scores one completed building: needs satisfaction gives a
// base performance in [0,1], decay applies a penalty, and catalog economics
// turn the result into revenue, maintenance, and land-value tax.
//
// The second return is false when the parcel has no completed building.
func ComputePerformance(at Coord, g *Grid, cats *catalog.Catalog, sd SupplyDemandTable, lvtRate float64) (Performance, bool) {
	p := g.At(at)
	if !p.Completed() {
		return Performance{}, false
	}
	def, ok := cats.Get(p.Building.TypeID)
	if !ok {
		return Performance{}, false
	}

	needs := deriveNeeds(def, sd)
	base := 1.0
	if len(needs) > 0 {
		sum := 0.0
		for _, n := range needs {
			sum += n.Ratio
		}
		base = sum / float64(len(needs))
	}

	decay := p.Building.Decay
	final := base * (1 - decayPenaltyWeight*decay)

	dailyDecayRate := def.Economics.DecayRatePctPerDay / 100.0
	ageMult := math.Pow(1+dailyDecayRate, float64(p.Building.AgeDays))

	return Performance{
		Efficiency:  final,
		Revenue:     def.Economics.MaxRevenue * final,
		Maintenance: def.Economics.MaintenanceBase * ageMult * (1 + decay),
		LandTax:     p.PaidPrice * lvtRate / 365.0,
		Decay:       decay,
		AgeDays:     p.Building.AgeDays,
		Needs:       needs,
	}, true
}

// currentBuildingValue is the depreciated replacement value used to price
// demolition fees and repairs.
func currentBuildingValue(def catalog.BuildingDef, b *BuildingInstance) float64 {
	v := def.Economics.BuildCost * (1 - b.Decay)
	if v < 0 {
		return 0
	}
	return v
}
