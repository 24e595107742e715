package room

import "sort"

// Snapshot is a deterministic export of one room's committed state. It serves
// the admin inspection endpoint and the full-state diffs in atomicity tests.
type Snapshot struct {
	RoomID       string            `json:"room_id"`
	Tick         uint64            `json:"tick"`
	Quarantined  bool              `json:"quarantined"`
	Players      []PlayerSnapshot  `json:"players"`
	Parcels      []ParcelSnapshot  `json:"parcels"`
	SupplyDemand SupplyDemandTable `json:"supply_demand"`
	Stats        CityStatistics    `json:"stats"`
}

type PlayerSnapshot struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type ParcelSnapshot struct {
	Row               int     `json:"row"`
	Col               int     `json:"col"`
	Owner             string  `json:"owner"`
	PaidPrice         float64 `json:"paid_price"`
	BuildingType      string  `json:"building_type,omitempty"`
	UnderConstruction bool    `json:"under_construction,omitempty"`
	CompleteAtTick    uint64  `json:"complete_at_tick,omitempty"`
	AgeDays           int     `json:"age_days,omitempty"`
	Decay             float64 `json:"decay,omitempty"`
}

// exportSnapshot is loop-owned. Only claimed or developed parcels are
// exported; a fresh grid exports an empty parcel list.
func (r *Room) exportSnapshot() Snapshot {
	snap := Snapshot{
		RoomID:       r.cfg.ID,
		Tick:         r.tick.Load(),
		Quarantined:  r.quarantined.Load(),
		SupplyDemand: r.sd.Clone(),
		Stats:        r.statistics(),
	}

	for id, p := range r.players {
		snap.Players = append(snap.Players, PlayerSnapshot{ID: id, Name: p.Name, Balance: p.Balance})
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].ID < snap.Players[j].ID })

	for row := 0; row < r.grid.Rows; row++ {
		for col := 0; col < r.grid.Cols; col++ {
			p := r.grid.At(Coord{Row: row, Col: col})
			if p.Owner == OwnerUnclaimed && p.Building == nil {
				continue
			}
			ps := ParcelSnapshot{
				Row:       row,
				Col:       col,
				Owner:     p.Owner,
				PaidPrice: p.PaidPrice,
			}
			if b := p.Building; b != nil {
				ps.BuildingType = b.TypeID
				ps.UnderConstruction = b.UnderConstruction
				ps.CompleteAtTick = b.CompleteAtTick
				ps.AgeDays = b.AgeDays
				ps.Decay = b.Decay
			}
			snap.Parcels = append(snap.Parcels, ps)
		}
	}
	return snap
}
