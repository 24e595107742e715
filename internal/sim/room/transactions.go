package room

import (
	"context"
	"fmt"
	"math"
	"time"

	"metrogrid.gg/internal/protocol"
)

const collaboratorTimeout = 500 * time.Millisecond

// applyTx validates and applies one transaction. A transaction either fully
// applies and returns the affected-coordinate set, or fails before the first
// mutation; there is no partial application.
func (r *Room) applyTx(playerID string, msg protocol.TxMsg) protocol.TxResultMsg {
	nowTick := r.tick.Load()

	var res protocol.TxResultMsg
	if r.quarantined.Load() {
		res = errorResult(msg.ID, nowTick, protocol.ErrRoomQuarantined, "room quarantined: "+r.quarantineReason)
	} else {
		switch msg.TxType {
		case protocol.TxBuild:
			res = r.applyBuild(playerID, msg, nowTick)
		case protocol.TxDemolish:
			res = r.applyDemolish(playerID, msg, nowTick)
		case protocol.TxRepair:
			res = r.applyRepair(playerID, msg, nowTick)
		case protocol.TxRateChange:
			res = r.applyRateChange(playerID, msg, nowTick)
		default:
			res = errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown tx type: "+msg.TxType)
		}
	}

	if r.audit != nil {
		r.audit.WriteTxAudit(TxAuditEntry{
			RoomID:   r.cfg.ID,
			Tick:     nowTick,
			TxID:     msg.ID,
			PlayerID: playerID,
			TxType:   msg.TxType,
			Row:      msg.Row,
			Col:      msg.Col,
			OK:       res.OK,
			Code:     res.Code,
		})
	}
	return res
}

func (r *Room) applyBuild(playerID string, msg protocol.TxMsg, nowTick uint64) protocol.TxResultMsg {
	p, ok := r.players[playerID]
	if !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown player")
	}
	co := Coord{Row: msg.Row, Col: msg.Col}
	if !r.grid.InBounds(co) {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "coordinate out of bounds")
	}
	def, ok := r.cats.Get(msg.BuildingType)
	if !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown building type: "+msg.BuildingType)
	}
	parcel := r.grid.At(co)
	if parcel.Building != nil {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "parcel already developed")
	}
	if parcel.Owner != OwnerUnclaimed && parcel.Owner != playerID {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "parcel owned by another player")
	}

	degraded := false
	if max := r.tune.Tx.MaxReachFromHub; max > 0 {
		dist, reachable, err := r.effectiveDistance(r.grid.Center(), co)
		if err != nil {
			// Documented fallback: treat the parcel as unreachable.
			reachable = false
			degraded = true
		}
		if !reachable || dist > max {
			res := errorResult(msg.ID, nowTick, protocol.ErrValidation, "parcel not reachable from city center")
			res.Degraded = degraded
			return res
		}
	}

	cost := def.Economics.BuildCost
	paidPrice := parcel.PaidPrice
	if parcel.Owner == OwnerUnclaimed {
		stats := r.statistics()
		v := r.landValueAt(co, stats.Vitality)
		paidPrice = float64(v.Value)
		cost += paidPrice
	}
	if p.Balance < cost {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation,
			fmt.Sprintf("insufficient funds: need %.0f, have %.0f", cost, p.Balance))
	}

	// Validation complete; mutate.
	p.Balance -= cost
	parcel.Owner = playerID
	parcel.PaidPrice = paidPrice
	b := &BuildingInstance{TypeID: def.ID}
	if days := def.Economics.BuildDays; days > 0 {
		b.UnderConstruction = true
		b.CompleteAtTick = nowTick + uint64(days*r.cfg.DayTicks)
	}
	parcel.Building = b

	r.cache.MarkDirty(co)
	r.cache.InvalidateLandValues()
	r.sdDirty = true

	r.broadcastLandValueEvent(nowTick, "build", co)
	return r.successResult(msg.ID, nowTick, degraded, co)
}

func (r *Room) applyDemolish(playerID string, msg protocol.TxMsg, nowTick uint64) protocol.TxResultMsg {
	p, ok := r.players[playerID]
	if !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown player")
	}
	co := Coord{Row: msg.Row, Col: msg.Col}
	if !r.grid.InBounds(co) {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "coordinate out of bounds")
	}
	parcel := r.grid.At(co)
	if parcel.Building == nil {
		return errorResult(msg.ID, nowTick, protocol.ErrNotFound, "no building at coordinate")
	}
	if parcel.Owner != playerID {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "not the parcel owner")
	}
	def, ok := r.cats.Get(parcel.Building.TypeID)
	if !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "building type missing from catalog")
	}
	fee := r.tune.Tx.DemolitionFeePct * currentBuildingValue(def, parcel.Building)
	if p.Balance < fee {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation,
			fmt.Sprintf("insufficient funds for demolition fee %.0f", fee))
	}

	// Clearing the building also cancels any pending construction completion:
	// completions are resolved against current parcel state at tick time.
	p.Balance -= fee
	parcel.Building = nil

	r.cache.Drop(co)
	r.cache.MarkDirty(co)
	r.cache.InvalidateLandValues()
	r.sdDirty = true

	r.broadcastLandValueEvent(nowTick, "demolish", co)
	return r.successResult(msg.ID, nowTick, false, co)
}

func (r *Room) applyRepair(playerID string, msg protocol.TxMsg, nowTick uint64) protocol.TxResultMsg {
	p, ok := r.players[playerID]
	if !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown player")
	}
	co := Coord{Row: msg.Row, Col: msg.Col}
	if !r.grid.InBounds(co) {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "coordinate out of bounds")
	}
	parcel := r.grid.At(co)
	if parcel.Building == nil {
		return errorResult(msg.ID, nowTick, protocol.ErrNotFound, "no building at coordinate")
	}
	if parcel.Owner != playerID {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "not the parcel owner")
	}

	// Cost scales with the condition deficit in whole points.
	deficit := parcel.Building.Decay * 100
	cost := deficit * r.tune.Tx.RepairCostPerPt
	if cost <= 0 {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "building needs no repair")
	}
	if p.Balance < cost {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation,
			fmt.Sprintf("insufficient funds: repair costs %.0f", cost))
	}

	p.Balance -= cost
	parcel.Building.Decay = 0
	r.cache.MarkDirty(co)
	return r.successResult(msg.ID, nowTick, false, co)
}

// applyRateChange reacts to a governance-wide LVT rate change. The rate itself
// lives in the governance subsystem; the engine's job is to drop every cached
// result, since the tax term shifts for every building at once.
func (r *Room) applyRateChange(playerID string, msg protocol.TxMsg, nowTick uint64) protocol.TxResultMsg {
	if _, ok := r.players[playerID]; !ok {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "unknown player")
	}
	if msg.Amount < 0 || msg.Amount > 1 {
		return errorResult(msg.ID, nowTick, protocol.ErrValidation, "rate must be in [0,1]")
	}

	r.cache.InvalidateAll()
	r.sdDirty = true

	r.broadcastEvent(protocol.Event{
		"t":      nowTick,
		"type":   protocol.TypeLandValueEvent,
		"reason": "rate_change",
		"rate":   msg.Amount,
	})
	return r.successResult(msg.ID, nowTick, false)
}

func (r *Room) successResult(ref string, tick uint64, degraded bool, coords ...Coord) protocol.TxResultMsg {
	affected := make([][2]int, 0, len(coords))
	for _, co := range coords {
		affected = append(affected, co.ToArray())
	}
	return protocol.TxResultMsg{
		Type:     protocol.TypeTxResult,
		Ref:      ref,
		OK:       true,
		Affected: affected,
		Tick:     tick,
		Degraded: degraded,
	}
}

// lvtRate reads the governance rate with the documented degraded fallback.
func (r *Room) lvtRate() (rate float64, degraded bool) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	rate, err := r.gov.CurrentLVTRate(ctx)
	if err != nil {
		return DefaultLVTRate, true
	}
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return DefaultLVTRate, true
	}
	return rate, false
}

func (r *Room) effectiveDistance(a, b Coord) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()
	return r.transit.EffectiveDistance(ctx, a, b)
}
