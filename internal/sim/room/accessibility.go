package room

import (
	"math"

	"metrogrid.gg/internal/sim/catalog"
)

// Normalizing constants for raw domain contributions. A single strong building
// at distance 1 should land well below saturation.
const (
	foodNorm       = 10.0
	jobsNorm       = 20.0
	healthcareNorm = 10.0
	educationNorm  = 10.0
	cultureNorm    = 4.0
	safetyNorm     = 4.0
	transportNorm  = 4.0
	energyFlat     = 0.5
)

// AccessScores holds one normalized score per accessibility domain, in [0,1).
type AccessScores map[string]float64

// AccessibilityAt scores how well a parcel is served across the eight domains
// by completed buildings within Chebyshev distance maxRadius. Influence decays
// linearly with distance (1.0 at distance 1, ~0.2 at distance 5) and the raw
// accumulation is squashed through tanh so packing more buildings into the
// radius gives diminishing returns and never reaches 1.0.
//
// Accumulation is commutative addition, so the result is independent of
// parcel iteration order.
func AccessibilityAt(at Coord, g *Grid, cats *catalog.Catalog, maxRadius int) AccessScores {
	raw := map[string]float64{}

	for dr := -maxRadius; dr <= maxRadius; dr++ {
		for dc := -maxRadius; dc <= maxRadius; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			c := Coord{Row: at.Row + dr, Col: at.Col + dc}
			if !g.InBounds(c) {
				continue
			}
			p := g.At(c)
			if !p.Completed() {
				continue
			}
			def, ok := cats.Get(p.Building.TypeID)
			if !ok {
				continue
			}

			dist := Chebyshev(at, c)
			influence := 1.2 - 0.2*float64(dist)
			if influence <= 0 {
				continue
			}

			if v := def.Resources.FoodProvided; v > 0 {
				raw[catalog.DomFood] += influence * v / foodNorm
			}
			if v := def.Resources.JobsProvided; v > 0 {
				raw[catalog.DomJobs] += influence * v / jobsNorm
			}
			if def.Category == catalog.CatInfrastructure {
				raw[catalog.DomEnergy] += influence * energyFlat
			}
			if def.Category == catalog.CatHealthcare {
				raw[catalog.DomHealthcare] += influence * def.Resources.HealthcareProvided / healthcareNorm
			}
			if def.Category == catalog.CatEducation {
				raw[catalog.DomEducation] += influence * def.Resources.EducationProvided / educationNorm
			}
			if def.Category == catalog.CatCulture || def.Category == catalog.CatRecreation {
				raw[catalog.DomCulture] += influence * math.Max(def.Livability.Culture, 0) / cultureNorm
			}
			if def.Category == catalog.CatSafety {
				raw[catalog.DomSafety] += influence * math.Max(def.Livability.Safety, 0) / safetyNorm
			}
			if v := def.Livability.Mobility; v > 0 {
				raw[catalog.DomTransport] += influence * v / transportNorm
			}
		}
	}

	out := make(AccessScores, len(catalog.Domains))
	for _, dom := range catalog.Domains {
		out[dom] = math.Tanh(raw[dom] * 0.5)
	}
	return out
}
