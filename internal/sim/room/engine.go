package room

import (
	"context"

	"metrogrid.gg/internal/protocol"
)

// housekeep runs one simulation tick: construction completions, the daily
// age/decay cycle, supply/demand recomputation, dirty-entry refresh, income
// application, and change broadcasts. It only ever runs between transactions,
// never during one.
func (r *Room) housekeep() {
	nowTick := r.tick.Load()
	defer r.tick.Add(1)

	if r.quarantined.Load() {
		return
	}

	r.completeConstructions(nowTick)

	dayBoundary := r.cfg.DayTicks > 0 && nowTick > 0 && nowTick%uint64(r.cfg.DayTicks) == 0
	if dayBoundary {
		r.advanceAgeAndDecay()
	}

	if r.sdDirty {
		sd := AggregateSupplyDemand(r.grid, r.cats)
		if err := sd.Validate(); err != nil {
			r.quarantine(err.Error())
			return
		}
		changed := !sd.Equal(r.sd)
		r.sd = sd
		r.sdDirty = false
		if changed {
			// New city totals shift every building's need ratios, so every
			// cached performance entry is stale, not just the touched parcels.
			r.grid.EachDeveloped(func(co Coord, p *Parcel) {
				if p.Completed() {
					r.cache.MarkDirty(co)
				}
			})
			r.broadcastSupplyDemand(nowTick)
		}
	}

	affected := r.refreshDirty()
	if dayBoundary {
		r.applyDailyIncome()
	}
	if len(affected) > 0 {
		r.broadcastPerfDelta(nowTick, affected)
	}

	stats := r.statistics()
	if stats != r.lastStats {
		r.lastStats = stats
		r.broadcastStats(nowTick, stats)
	}
}

// completeConstructions finishes buildings whose completion tick has arrived.
// Demolishing a parcel before this point cancels the completion implicitly:
// there is nothing left to complete.
func (r *Room) completeConstructions(nowTick uint64) {
	var done []Coord
	r.grid.EachDeveloped(func(co Coord, p *Parcel) {
		b := p.Building
		if b.UnderConstruction && nowTick >= b.CompleteAtTick {
			b.UnderConstruction = false
			b.CompleteAtTick = 0
			done = append(done, co)
		}
	})
	if len(done) == 0 {
		return
	}
	for _, co := range done {
		r.cache.MarkDirty(co)
	}
	r.cache.InvalidateLandValues()
	r.sdDirty = true
	for _, co := range done {
		r.broadcastLandValueEvent(nowTick, "construction_complete", co)
	}
}

// advanceAgeAndDecay runs the daily cycle: every completed building ages one
// day and accrues condition loss at its catalog decay rate.
func (r *Room) advanceAgeAndDecay() {
	r.grid.EachDeveloped(func(co Coord, p *Parcel) {
		if !p.Completed() {
			return
		}
		def, ok := r.cats.Get(p.Building.TypeID)
		if !ok {
			return
		}
		p.Building.AgeDays++
		p.Building.Decay += def.Economics.DecayRatePctPerDay / 100.0
		if p.Building.Decay > 1 {
			p.Building.Decay = 1
		}
		r.cache.MarkDirty(co)
	})
}

// refreshDirty recomputes every dirty cache entry and returns the refreshed
// coordinates.
func (r *Room) refreshDirty() []Coord {
	dirty := r.cache.DirtyCoords()
	var affected []Coord
	for _, co := range dirty {
		if !r.grid.At(co).Completed() {
			r.cache.Drop(co)
			affected = append(affected, co)
			continue
		}
		if _, _, found := r.performanceAt(co); found {
			affected = append(affected, co)
		}
	}
	return affected
}

// applyDailyIncome credits each building's net income to its owner and routes
// the land-value tax to the city treasury via the governance collaborator.
func (r *Room) applyDailyIncome() {
	totalLVT := 0.0
	r.grid.EachDeveloped(func(co Coord, p *Parcel) {
		if !p.Completed() {
			return
		}
		perf, _, found := r.performanceAt(co)
		if !found {
			return
		}
		if owner, ok := r.players[p.Owner]; ok {
			owner.Balance += perf.NetIncome()
		}
		totalLVT += perf.LandTax
	})
	if totalLVT > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := r.gov.AddFunds(ctx, totalLVT, "lvt"); err != nil {
			r.degradedTick = true
			r.log.WithError(err).Warn("governance treasury credit failed")
		}
	}
}

// performanceAt serves a building's performance from cache when the entry is
// clean, computing and storing a fresh result otherwise. The cache is an
// optimization, never a correctness override: a clean entry always equals a
// fresh computation.
func (r *Room) performanceAt(co Coord) (perf Performance, cached bool, found bool) {
	if perf, ok := r.cache.Perf(co); ok {
		return perf, true, true
	}
	rate, degraded := r.lvtRate()
	perf, found = ComputePerformance(co, r.grid, r.cats, r.sd, rate)
	if !found {
		return Performance{}, false, false
	}
	perf.Degraded = degraded
	r.cache.StorePerf(co, perf)
	return perf, false, true
}

// landValueAt serves a valuation from the TTL cache or computes it fresh.
func (r *Room) landValueAt(co Coord, vitality float64) Valuation {
	if v, ok := r.cache.LandValue(co); ok {
		return v
	}
	v := Valuate(co, r.grid, r.cats, vitality,
		r.tune.LandValue.CenterPrice, r.tune.LandValue.EdgePrice, r.tune.Access.MaxRadius)
	r.cache.StoreLandValue(co, v)
	return v
}

func (r *Room) statistics() CityStatistics {
	return computeStatistics(r.grid, r.cats, r.sd, func(co Coord) (Performance, bool) {
		perf, _, found := r.performanceAt(co)
		return perf, found
	})
}

// TxStep is one queued transaction for StepOnce.
type TxStep struct {
	PlayerID string
	Msg      protocol.TxMsg
}

// StepOnce advances the room by a single tick from the caller's goroutine,
// applying the given transactions in order first. It mirrors one pass of the
// Run loop and exists for deterministic tests and replays; it must not be
// mixed with a running Run loop.
func (r *Room) StepOnce(txs ...TxStep) []protocol.TxResultMsg {
	results := make([]protocol.TxResultMsg, 0, len(txs))
	for _, tx := range txs {
		results = append(results, r.applyTx(tx.PlayerID, tx.Msg))
	}
	r.housekeep()
	return results
}

// JoinDirect adds a player from the caller's goroutine. Companion to StepOnce.
func (r *Room) JoinDirect(name string, out chan []byte) JoinResponse {
	resp := make(chan JoinResponse, 1)
	r.handleJoin(JoinRequest{Name: name, Out: out, Resp: resp})
	return <-resp
}
