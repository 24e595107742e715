package room

import "time"

// EconomicCache memoizes per-building performance keyed by coordinate, with an
// explicit dirty-set instead of TTL expiry: a non-dirty entry is always equal
// to what fresh computation would produce. Land values get a separate short
// TTL cache because their dependency radius is wide; it is wiped wholesale on
// any build or demolish, which may over-invalidate but never under-invalidates.
//
// The cache is owned by one room's loop goroutine and needs no locking.
type EconomicCache struct {
	perf  map[Coord]perfEntry
	dirty map[Coord]struct{}
	gen   uint64

	landValue map[Coord]lvEntry
	lvTTL     time.Duration

	now func() time.Time
}

type perfEntry struct {
	perf Performance
	at   time.Time
}

type lvEntry struct {
	val Valuation
	at  time.Time
}

func NewEconomicCache(lvTTL time.Duration) *EconomicCache {
	return &EconomicCache{
		perf:      map[Coord]perfEntry{},
		dirty:     map[Coord]struct{}{},
		landValue: map[Coord]lvEntry{},
		lvTTL:     lvTTL,
		now:       time.Now,
	}
}

// Perf returns the cached performance for a coordinate if present and clean.
func (c *EconomicCache) Perf(co Coord) (Performance, bool) {
	if _, d := c.dirty[co]; d {
		return Performance{}, false
	}
	e, ok := c.perf[co]
	if !ok {
		return Performance{}, false
	}
	return e.perf, true
}

// StorePerf records a freshly computed result and clears dirtiness for the
// coordinate.
func (c *EconomicCache) StorePerf(co Coord, p Performance) {
	c.perf[co] = perfEntry{perf: p, at: c.now()}
	delete(c.dirty, co)
}

// Drop removes a coordinate entirely (the building is gone).
func (c *EconomicCache) Drop(co Coord) {
	delete(c.perf, co)
	delete(c.dirty, co)
}

// MarkDirty adds coordinates to the dirty-set.
func (c *EconomicCache) MarkDirty(coords ...Coord) {
	for _, co := range coords {
		c.dirty[co] = struct{}{}
	}
}

// DirtyCoords returns the current dirty-set.
func (c *EconomicCache) DirtyCoords() []Coord {
	out := make([]Coord, 0, len(c.dirty))
	for co := range c.dirty {
		out = append(out, co)
	}
	return out
}

// InvalidateAll clears every cached result. Used after governance-wide
// parameter changes, which shift every building's tax at once.
func (c *EconomicCache) InvalidateAll() {
	c.perf = map[Coord]perfEntry{}
	c.dirty = map[Coord]struct{}{}
	c.landValue = map[Coord]lvEntry{}
	c.gen++
}

// Generation counts InvalidateAll calls; useful for tests and metrics.
func (c *EconomicCache) Generation() uint64 { return c.gen }

// LandValue returns the cached valuation if it is still inside its TTL.
func (c *EconomicCache) LandValue(co Coord) (Valuation, bool) {
	e, ok := c.landValue[co]
	if !ok {
		return Valuation{}, false
	}
	if c.lvTTL > 0 && c.now().Sub(e.at) > c.lvTTL {
		delete(c.landValue, co)
		return Valuation{}, false
	}
	return e.val, true
}

func (c *EconomicCache) StoreLandValue(co Coord, v Valuation) {
	c.landValue[co] = lvEntry{val: v, at: c.now()}
}

// InvalidateLandValues wipes the land-value cache. Called on every build and
// demolish so a radius-5 neighborhood change can never serve a stale value.
func (c *EconomicCache) InvalidateLandValues() {
	c.landValue = map[Coord]lvEntry{}
}
