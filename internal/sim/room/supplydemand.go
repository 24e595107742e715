package room

import (
	"fmt"
	"math"

	"metrogrid.gg/internal/sim/catalog"
)

// WorkersPerBedroom is the fixed ratio of job seekers produced per unit of
// residential capacity.
const WorkersPerBedroom = 0.6

// Balance is one resource category's city-wide totals.
type Balance struct {
	Supply float64 `json:"supply"`
	Demand float64 `json:"demand"`
}

// SupplyDemandTable maps resource category to its totals. Values are sums of
// non-negative per-building contributions only.
type SupplyDemandTable map[string]Balance

// Ratio returns capped satisfaction supply/demand for a category. Zero demand
// is trivially satisfied.
func (t SupplyDemandTable) Ratio(res string) float64 {
	b := t[res]
	if b.Demand <= 0 {
		return 1.0
	}
	r := b.Supply / b.Demand
	if r > 1.0 {
		return 1.0
	}
	return r
}

// Validate returns an error when any aggregate went negative. A negative
// aggregate cannot arise from well-formed catalog data, so a failure here
// means the room state is corrupted and the engine must be quarantined.
func (t SupplyDemandTable) Validate() error {
	for _, res := range catalog.Resources {
		b := t[res]
		if b.Supply < 0 || b.Demand < 0 {
			return fmt.Errorf("negative aggregate for %s: supply=%f demand=%f", res, b.Supply, b.Demand)
		}
	}
	return nil
}

// AggregateSupplyDemand scans every parcel once and produces the city totals.
// Completed buildings contribute supply and demand; parcels still under
// construction contribute demand only, so neighbors already feel the load of
// an announced building before it opens.
func AggregateSupplyDemand(g *Grid, cats *catalog.Catalog) SupplyDemandTable {
	t := SupplyDemandTable{}
	for _, res := range catalog.Resources {
		t[res] = Balance{}
	}

	g.EachDeveloped(func(_ Coord, p *Parcel) {
		def, ok := cats.Get(p.Building.TypeID)
		if !ok {
			return
		}

		if p.Completed() {
			for _, res := range catalog.Resources {
				if v := def.Resources.Provided(res); v > 0 {
					b := t[res]
					b.Supply += v
					t[res] = b
				}
			}
		}

		addDemand := func(res string, v float64) {
			if v <= 0 {
				return
			}
			b := t[res]
			b.Demand += v
			t[res] = b
		}

		// Residential capacity demands jobs for its residents and food for
		// every resident; job-creating buildings demand housing for workers.
		if cap := def.Resources.HousingProvided; cap > 0 {
			addDemand(catalog.ResJobs, math.Floor(cap*WorkersPerBedroom))
			addDemand(catalog.ResFood, cap)
		}
		if jobs := def.Resources.JobsProvided; jobs > 0 {
			addDemand(catalog.ResHousing, jobs)
		}
		addDemand(catalog.ResEnergy, def.Resources.EnergyRequired)
	})

	return t
}

// Equal reports whether both tables carry the same totals for every tracked
// category.
func (t SupplyDemandTable) Equal(other SupplyDemandTable) bool {
	for _, res := range catalog.Resources {
		if t[res] != other[res] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy, used for state snapshots.
func (t SupplyDemandTable) Clone() SupplyDemandTable {
	out := make(SupplyDemandTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
