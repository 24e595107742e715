package room

import (
	"context"
	"errors"
)

// ErrRoomClosed is returned when a query races the room shutting down.
var ErrRoomClosed = errors.New("room closed")

type queryKind int

const (
	qPerformance queryKind = iota + 1
	qStats
	qSupplyDemand
	qLandValue
	qSnapshot
	qMembers
)

type queryReq struct {
	kind  queryKind
	coord Coord
	resp  chan queryResp
}

type queryResp struct {
	perf    PerfResult
	stats   StatsResult
	sd      SupplyDemandResult
	lv      LandValueResult
	snap    Snapshot
	members int
}

// PerfResult is one building-performance read. Cached reports whether the
// value came from the economic cache rather than fresh computation.
type PerfResult struct {
	Performance Performance `json:"performance"`
	Found       bool        `json:"found"`
	Cached      bool        `json:"cached"`
}

type StatsResult struct {
	Stats  CityStatistics `json:"stats"`
	Cached bool           `json:"cached"`
}

type SupplyDemandResult struct {
	Table  SupplyDemandTable `json:"table"`
	Cached bool              `json:"cached"`
}

type LandValueResult struct {
	Value  int  `json:"value"`
	Cached bool `json:"cached"`
}

// handleQuery answers a read from committed state inside the loop goroutine.
// Reads therefore never observe a torn intermediate state: they serialize
// with mutations but cannot interleave with one.
func (r *Room) handleQuery(q queryReq) {
	var resp queryResp
	switch q.kind {
	case qPerformance:
		perf, cached, found := r.performanceAt(q.coord)
		resp.perf = PerfResult{Performance: perf, Found: found, Cached: cached}
	case qStats:
		resp.stats = StatsResult{Stats: r.statistics()}
	case qSupplyDemand:
		resp.sd = SupplyDemandResult{Table: r.sd.Clone(), Cached: !r.sdDirty}
	case qLandValue:
		_, cached := r.cache.LandValue(q.coord)
		v := r.landValueAt(q.coord, r.statistics().Vitality)
		resp.lv = LandValueResult{Value: v.Value, Cached: cached}
	case qSnapshot:
		resp.snap = r.exportSnapshot()
	case qMembers:
		resp.members = r.memberCount()
	}
	q.resp <- resp
}

func (r *Room) request(ctx context.Context, q queryReq) (queryResp, error) {
	q.resp = make(chan queryResp, 1)
	select {
	case r.query <- q:
	case <-ctx.Done():
		return queryResp{}, ctx.Err()
	case <-r.stop:
		return queryResp{}, ErrRoomClosed
	}
	select {
	case resp := <-q.resp:
		return resp, nil
	case <-ctx.Done():
		return queryResp{}, ctx.Err()
	case <-r.stop:
		return queryResp{}, ErrRoomClosed
	}
}

// RequestPerformance reads one building's performance record.
func (r *Room) RequestPerformance(ctx context.Context, co Coord) (PerfResult, error) {
	if !r.grid.InBounds(co) {
		return PerfResult{}, nil
	}
	resp, err := r.request(ctx, queryReq{kind: qPerformance, coord: co})
	return resp.perf, err
}

func (r *Room) RequestStats(ctx context.Context) (StatsResult, error) {
	resp, err := r.request(ctx, queryReq{kind: qStats})
	return resp.stats, err
}

func (r *Room) RequestSupplyDemand(ctx context.Context) (SupplyDemandResult, error) {
	resp, err := r.request(ctx, queryReq{kind: qSupplyDemand})
	return resp.sd, err
}

func (r *Room) RequestLandValue(ctx context.Context, co Coord) (LandValueResult, error) {
	if !r.grid.InBounds(co) {
		return LandValueResult{}, nil
	}
	resp, err := r.request(ctx, queryReq{kind: qLandValue, coord: co})
	return resp.lv, err
}

// RequestSnapshot exports the room's committed state.
func (r *Room) RequestSnapshot(ctx context.Context) (Snapshot, error) {
	resp, err := r.request(ctx, queryReq{kind: qSnapshot})
	return resp.snap, err
}

// RequestMemberCount returns the number of connected members.
func (r *Room) RequestMemberCount(ctx context.Context) (int, error) {
	resp, err := r.request(ctx, queryReq{kind: qMembers})
	return resp.members, err
}
