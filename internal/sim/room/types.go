package room

import "math"

// Coord addresses one parcel on the room grid.
type Coord struct {
	Row int
	Col int
}

func (c Coord) ToArray() [2]int { return [2]int{c.Row, c.Col} }

// Chebyshev is the board distance used for accessibility radii.
func Chebyshev(a, b Coord) int {
	dr := a.Row - b.Row
	if dr < 0 {
		dr = -dr
	}
	dc := a.Col - b.Col
	if dc < 0 {
		dc = -dc
	}
	if dr > dc {
		return dr
	}
	return dc
}

// Euclid is the straight-line distance used for the center price curve.
func Euclid(a, b Coord) float64 {
	dr := float64(a.Row - b.Row)
	dc := float64(a.Col - b.Col)
	return math.Sqrt(dr*dr + dc*dc)
}

// Parcel owner sentinels. Any other owner value is a player id.
const (
	OwnerCity      = "city"
	OwnerUnclaimed = ""
)

// BuildingInstance is the mutable run-state of one placed building.
type BuildingInstance struct {
	TypeID            string
	UnderConstruction bool
	CompleteAtTick    uint64
	AgeDays           int
	Decay             float64 // 0 = pristine, 1 = fully decayed
}

// Parcel is one grid cell. Mutated only from the room loop goroutine.
type Parcel struct {
	Owner     string
	Building  *BuildingInstance
	PaidPrice float64
}

// Completed reports whether the parcel holds a finished building.
func (p *Parcel) Completed() bool {
	return p.Building != nil && !p.Building.UnderConstruction
}

// Developed reports whether the parcel holds any building at all.
func (p *Parcel) Developed() bool { return p.Building != nil }

// Grid owns the parcels of one room.
type Grid struct {
	Rows int
	Cols int

	parcels []Parcel
}

func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, parcels: make([]Parcel, rows*cols)}
}

func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

func (g *Grid) At(c Coord) *Parcel {
	return &g.parcels[c.Row*g.Cols+c.Col]
}

// Center is the city-center coordinate for the price curve and reach checks.
func (g *Grid) Center() Coord {
	return Coord{Row: g.Rows / 2, Col: g.Cols / 2}
}

// CornerDistance is the Euclidean distance from center to the farthest corner,
// used to normalize the distance-from-center price curve.
func (g *Grid) CornerDistance() float64 {
	center := g.Center()
	d := 0.0
	for _, corner := range []Coord{{0, 0}, {0, g.Cols - 1}, {g.Rows - 1, 0}, {g.Rows - 1, g.Cols - 1}} {
		if v := Euclid(center, corner); v > d {
			d = v
		}
	}
	return d
}

// EachDeveloped calls fn for every parcel holding a building.
func (g *Grid) EachDeveloped(fn func(Coord, *Parcel)) {
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			co := Coord{Row: r, Col: c}
			p := g.At(co)
			if p.Building != nil {
				fn(co, p)
			}
		}
	}
}

// Player is one room member's economic state.
type Player struct {
	ID      string
	Name    string
	Balance float64
}
