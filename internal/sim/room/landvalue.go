package room

import (
	"math"

	"metrogrid.gg/internal/sim/catalog"
)

const (
	accessWeightPerDomain = 0.1875
	networkBonusPerSide   = 0.05
	prosperityDivisor     = 500.0
	prosperityCap         = 0.3
	multiplierFloor       = 0.25
	multiplierCeil        = 5.0
	nearbyPopRadius       = 3
)

// Valuation carries the land value and its inputs, for event payloads and debugging.
type Valuation struct {
	Value           int     `json:"value"`
	BasePrice       float64 `json:"base_price"`
	TotalMultiplier float64 `json:"total_multiplier"`
}

// basePrice interpolates linearly between the center price and the edge price
// by normalized distance from the city center.
func basePrice(at Coord, g *Grid, centerPrice, edgePrice float64) float64 {
	corner := g.CornerDistance()
	if corner <= 0 {
		return centerPrice
	}
	t := Euclid(g.Center(), at) / corner
	if t > 1 {
		t = 1
	}
	return centerPrice + (edgePrice-centerPrice)*t
}

// Valuate computes the land value for one parcel: a distance-from-center base
// price scaled by accessibility, demand, network, and prosperity multipliers,
// with the combined multiplier clamped to [0.25, 5.0].
func Valuate(at Coord, g *Grid, cats *catalog.Catalog, cityVitality float64, centerPrice, edgePrice float64, maxRadius int) Valuation {
	base := basePrice(at, g, centerPrice, edgePrice)

	access := AccessibilityAt(at, g, cats, maxRadius)
	accessMult := 0.5
	for _, dom := range catalog.Domains {
		accessMult += math.Min(access[dom], 1.0) * accessWeightPerDomain
	}

	demandMult := 1.0
	p := g.At(at)
	if p.Developed() {
		def, ok := cats.Get(p.Building.TypeID)
		switch {
		case ok && def.Resources.HousingProvided > 0:
			demandMult = 1.0 + (def.Resources.HousingProvided/10.0)*(accessMult-0.5)
		default:
			demandMult = 1.0 + (nearbyPopulation(at, g, cats)/50.0)*0.5
		}
	}

	networkMult := 1.0
	for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		n := Coord{Row: at.Row + d[0], Col: at.Col + d[1]}
		if g.InBounds(n) && g.At(n).Developed() {
			networkMult += networkBonusPerSide
		}
	}

	prosperity := math.Min(cityVitality/prosperityDivisor, prosperityCap)

	total := accessMult * demandMult * networkMult * (1 + prosperity)
	if total < multiplierFloor {
		total = multiplierFloor
	}
	if total > multiplierCeil {
		total = multiplierCeil
	}

	return Valuation{
		Value:           int(math.Round(base * total)),
		BasePrice:       base,
		TotalMultiplier: total,
	}
}

// nearbyPopulation sums residential capacity of completed buildings within
// radius 3, standing in for resident counts.
func nearbyPopulation(at Coord, g *Grid, cats *catalog.Catalog) float64 {
	pop := 0.0
	for dr := -nearbyPopRadius; dr <= nearbyPopRadius; dr++ {
		for dc := -nearbyPopRadius; dc <= nearbyPopRadius; dc++ {
			c := Coord{Row: at.Row + dr, Col: at.Col + dc}
			if !g.InBounds(c) {
				continue
			}
			p := g.At(c)
			if !p.Completed() {
				continue
			}
			if def, ok := cats.Get(p.Building.TypeID); ok {
				pop += def.Resources.HousingProvided
			}
		}
	}
	return pop
}
