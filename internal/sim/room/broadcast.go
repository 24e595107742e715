package room

import (
	"encoding/json"

	"metrogrid.gg/internal/protocol"
)

// broadcastEvent pushes one event to every connected room member. Slow
// clients get the latest message; one stale message may be dropped to make
// space rather than blocking the room loop.
func (r *Room) broadcastEvent(ev protocol.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for _, cl := range r.clients {
		sendLatest(cl.Out, b)
	}
}

func (r *Room) broadcastStats(tick uint64, stats CityStatistics) {
	r.broadcastEvent(protocol.Event{
		"t":     tick,
		"type":  protocol.TypeStats,
		"stats": stats,
	})
}

func (r *Room) broadcastSupplyDemand(tick uint64) {
	r.broadcastEvent(protocol.Event{
		"t":     tick,
		"type":  protocol.TypeSupplyDemand,
		"table": r.sd,
	})
}

func (r *Room) broadcastPerfDelta(tick uint64, coords []Coord) {
	affected := make([][2]int, 0, len(coords))
	for _, co := range coords {
		affected = append(affected, co.ToArray())
	}
	r.broadcastEvent(protocol.Event{
		"t":        tick,
		"type":     protocol.TypePerfDelta,
		"affected": affected,
	})
}

func (r *Room) broadcastLandValueEvent(tick uint64, reason string, co Coord) {
	r.broadcastEvent(protocol.Event{
		"t":      tick,
		"type":   protocol.TypeLandValueEvent,
		"reason": reason,
		"coord":  co.ToArray(),
	})
}

func sendLatest(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
