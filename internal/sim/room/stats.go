package room

import (
	"math"

	"metrogrid.gg/internal/sim/catalog"
)

// CityStatistics is derived from grid state and the supply/demand table. It is
// never mutated independently.
type CityStatistics struct {
	Population        float64 `json:"population"`
	Employed          float64 `json:"employed"`
	Buildings         int     `json:"buildings"`
	UnderConstruction int     `json:"under_construction"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalMaintenance  float64 `json:"total_maintenance"`
	TotalLandTax      float64 `json:"total_land_tax"`
	NetIncome         float64 `json:"net_income"`
	Vitality          float64 `json:"vitality"`
}

// computeStatistics folds per-building performance into city totals. Vitality
// is a non-negative aggregate of positive indicators feeding the land-value
// prosperity bonus: population plus filled jobs plus a weight per completed
// building.
func computeStatistics(g *Grid, cats *catalog.Catalog, sd SupplyDemandTable, perfAt func(Coord) (Performance, bool)) CityStatistics {
	var s CityStatistics

	g.EachDeveloped(func(co Coord, p *Parcel) {
		if !p.Completed() {
			s.UnderConstruction++
			return
		}
		s.Buildings++
		if def, ok := cats.Get(p.Building.TypeID); ok {
			s.Population += def.Resources.HousingProvided
		}
		if perf, ok := perfAt(co); ok {
			s.TotalRevenue += perf.Revenue
			s.TotalMaintenance += perf.Maintenance
			s.TotalLandTax += perf.LandTax
		}
	})

	jobs := sd[catalog.ResJobs]
	s.Employed = math.Min(jobs.Supply, jobs.Demand)
	s.NetIncome = s.TotalRevenue - s.TotalMaintenance - s.TotalLandTax
	s.Vitality = s.Population + s.Employed + 2*float64(s.Buildings)
	return s
}
