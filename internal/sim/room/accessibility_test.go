package room

import (
	"testing"

	"metrogrid.gg/internal/sim/catalog"
)

func TestAccessibilityAt_EmptyNeighborhood(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	scores := AccessibilityAt(Coord{10, 10}, g, cats, 5)
	for _, dom := range catalog.Domains {
		if scores[dom] != 0 {
			t.Fatalf("%s on empty grid: got %v want 0", dom, scores[dom])
		}
	}
}

func TestAccessibilityAt_BoundedBelowOne(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	// Saturate the neighborhood with food producers.
	for r := 5; r <= 15; r++ {
		for c := 5; c <= 15; c++ {
			if r == 10 && c == 10 {
				continue
			}
			g.At(Coord{r, c}).Building = &BuildingInstance{TypeID: "farm"}
		}
	}
	scores := AccessibilityAt(Coord{10, 10}, g, cats, 5)
	food := scores[catalog.DomFood]
	if food <= 0.9 {
		t.Fatalf("saturated food score too low: %v", food)
	}
	if food >= 1.0 {
		t.Fatalf("food score must stay below 1: %v", food)
	}
}

func TestAccessibilityAt_DecaysWithDistance(t *testing.T) {
	cats := testCatalog(t)
	near := NewGrid(20, 20)
	near.At(Coord{10, 11}).Building = &BuildingInstance{TypeID: "farm"}
	far := NewGrid(20, 20)
	far.At(Coord{10, 15}).Building = &BuildingInstance{TypeID: "farm"}

	a := AccessibilityAt(Coord{10, 10}, near, cats, 5)[catalog.DomFood]
	b := AccessibilityAt(Coord{10, 10}, far, cats, 5)[catalog.DomFood]
	if a <= b {
		t.Fatalf("influence should decay with distance: near=%v far=%v", a, b)
	}
	if b <= 0 {
		t.Fatalf("distance 5 still inside radius: got %v", b)
	}

	outside := NewGrid(20, 20)
	outside.At(Coord{10, 16}).Building = &BuildingInstance{TypeID: "farm"}
	if got := AccessibilityAt(Coord{10, 10}, outside, cats, 5)[catalog.DomFood]; got != 0 {
		t.Fatalf("distance 6 outside radius: got %v want 0", got)
	}
}

func TestAccessibilityAt_IgnoresUnderConstruction(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	g.At(Coord{10, 11}).Building = &BuildingInstance{TypeID: "farm", UnderConstruction: true, CompleteAtTick: 99}
	if got := AccessibilityAt(Coord{10, 10}, g, cats, 5)[catalog.DomFood]; got != 0 {
		t.Fatalf("unfinished building should not score: got %v", got)
	}
}

func TestAccessibilityAt_DomainRouting(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	g.At(Coord{10, 11}).Building = &BuildingInstance{TypeID: "clinic"}
	g.At(Coord{10, 9}).Building = &BuildingInstance{TypeID: "school"}
	g.At(Coord{11, 10}).Building = &BuildingInstance{TypeID: "park"}
	g.At(Coord{9, 10}).Building = &BuildingInstance{TypeID: "stop"}

	scores := AccessibilityAt(Coord{10, 10}, g, cats, 5)
	for _, dom := range []string{catalog.DomHealthcare, catalog.DomEducation, catalog.DomCulture, catalog.DomTransport} {
		if scores[dom] <= 0 {
			t.Fatalf("%s should be served: %+v", dom, scores)
		}
	}
	// Clinic and school also employ people.
	if scores[catalog.DomJobs] <= 0 {
		t.Fatalf("jobs should be served: %+v", scores)
	}
	if scores[catalog.DomFood] != 0 {
		t.Fatalf("no food producer nearby: %+v", scores)
	}
}

func TestAccessibilityAt_EdgeParcelTruncatesWindow(t *testing.T) {
	cats := testCatalog(t)
	g := NewGrid(20, 20)
	g.At(Coord{0, 1}).Building = &BuildingInstance{TypeID: "farm"}

	// Scanning from the corner must not index out of bounds.
	scores := AccessibilityAt(Coord{0, 0}, g, cats, 5)
	if scores[catalog.DomFood] <= 0 {
		t.Fatalf("corner parcel should still see its neighbor: %+v", scores)
	}
}
