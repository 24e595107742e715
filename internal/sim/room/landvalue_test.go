package room

import (
	"math"
	"testing"
)

func TestBasePrice_CenterToEdge(t *testing.T) {
	g := NewGrid(20, 20)
	center := g.Center()

	if got := basePrice(center, g, 500, 100); got != 500 {
		t.Fatalf("center price: got %v want %v", got, 500.0)
	}
	corner := basePrice(Coord{0, 0}, g, 500, 100)
	if math.Abs(corner-100) > 1e-9 {
		t.Fatalf("far corner price: got %v want %v", corner, 100.0)
	}
	mid := basePrice(Coord{center.Row, center.Col + 5}, g, 500, 100)
	if mid <= corner || mid >= 500 {
		t.Fatalf("mid-distance price should interpolate: got %v", mid)
	}
}

func TestValuate_EmptyGridUsesBaseline(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	v := Valuate(g.Center(), g, cats, 0, 500, 100, 5)
	// No accessibility, no neighbors, no prosperity: multiplier is the bare
	// access floor of 0.5.
	if math.Abs(v.TotalMultiplier-0.5) > 1e-9 {
		t.Fatalf("empty-grid multiplier: got %v want %v", v.TotalMultiplier, 0.5)
	}
	if v.Value != 250 {
		t.Fatalf("empty-grid center value: got %v want %v", v.Value, 250)
	}
}

func TestValuate_MultiplierClamped(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	center := g.Center()

	// Dense mixed-use neighborhood pushes every term up.
	types := []string{"farm", "plant", "clinic", "school", "park", "stop", "workshop", "apt"}
	i := 0
	for dr := -3; dr <= 3; dr++ {
		for dc := -3; dc <= 3; dc++ {
			co := Coord{center.Row + dr, center.Col + dc}
			g.At(co).Building = &BuildingInstance{TypeID: types[i%len(types)]}
			i++
		}
	}

	v := Valuate(center, g, cats, 10000, 500, 100, 5)
	if v.TotalMultiplier < 0.25 || v.TotalMultiplier > 5.0 {
		t.Fatalf("multiplier outside clamp: %v", v.TotalMultiplier)
	}

	empty := NewGrid(20, 20)
	lo := Valuate(empty.Center(), empty, cats, 0, 500, 100, 5)
	if lo.TotalMultiplier < 0.25 {
		t.Fatalf("multiplier below floor: %v", lo.TotalMultiplier)
	}
}

func TestValuate_NetworkBonus(t *testing.T) {
	cats := testCatalog(t)
	bare := NewGrid(20, 20)
	connected := NewGrid(20, 20)
	at := Coord{10, 10}
	for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		co := Coord{at.Row + d[0], at.Col + d[1]}
		// Under construction still counts as developed for adjacency.
		connected.At(co).Building = &BuildingInstance{TypeID: "park", UnderConstruction: true, CompleteAtTick: 99}
	}

	a := Valuate(at, bare, cats, 0, 500, 100, 5)
	b := Valuate(at, connected, cats, 0, 500, 100, 5)
	want := a.TotalMultiplier * 1.2
	if math.Abs(b.TotalMultiplier-want) > 1e-9 {
		t.Fatalf("four developed sides: got %v want %v", b.TotalMultiplier, want)
	}
}

func TestValuate_ProsperityCapped(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	at := Coord{3, 3}

	modest := Valuate(at, g, cats, 50, 500, 100, 5)
	rich := Valuate(at, g, cats, 1e6, 500, 100, 5)
	capped := Valuate(at, g, cats, 1e7, 500, 100, 5)

	if modest.TotalMultiplier >= rich.TotalMultiplier {
		t.Fatalf("vitality should raise value: modest=%v rich=%v", modest.TotalMultiplier, rich.TotalMultiplier)
	}
	if rich.TotalMultiplier != capped.TotalMultiplier {
		t.Fatalf("prosperity bonus should cap: %v vs %v", rich.TotalMultiplier, capped.TotalMultiplier)
	}
}

func TestValuate_Deterministic(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	g.At(Coord{10, 11}).Building = &BuildingInstance{TypeID: "farm"}
	g.At(Coord{9, 10}).Building = &BuildingInstance{TypeID: "apt"}

	first := Valuate(Coord{10, 10}, g, cats, 42, 500, 100, 5)
	for i := 0; i < 10; i++ {
		if got := Valuate(Coord{10, 10}, g, cats, 42, 500, 100, 5); got != first {
			t.Fatalf("valuation not deterministic: %+v vs %+v", got, first)
		}
	}
}
