package roommgr

import (
	"context"
	"testing"
	"time"

	"metrogrid.gg/internal/protocol"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/tuning"
)

const managerTestCatalog = `[
  {
    "id": "apt",
    "name": "Apartment",
    "category": "residential",
    "economics": {"build_cost": 900, "max_revenue": 80, "maintenance_base": 10, "build_days": 0},
    "resources": {"housing_provided": 10}
  },
  {
    "id": "park",
    "name": "Park",
    "category": "recreation",
    "economics": {"build_cost": 150, "maintenance_base": 2, "build_days": 0},
    "livability": {"culture": 0.3}
  }
]`

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cats, err := catalog.Parse([]byte(managerTestCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	m := New(Options{Tuning: tuning.Defaults(), Catalog: cats})
	t.Cleanup(m.Close)
	return m
}

func buildTx(id, typeID string, row, col int) protocol.TxMsg {
	return protocol.TxMsg{
		Type:         protocol.TypeTx,
		ID:           id,
		TxType:       protocol.TxBuild,
		Row:          row,
		Col:          col,
		BuildingType: typeID,
	}
}

func TestJoin_CreatesRoomAndRoutes(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, resp, err := m.Join(ctx, "alice", "downtown", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if sess.RoomID != "downtown" {
		t.Fatalf("room id: got %q want %q", sess.RoomID, "downtown")
	}
	if resp.Balance != tuning.Defaults().StartingBalance {
		t.Fatalf("starting balance: got %v", resp.Balance)
	}
	if got := m.RoomIDs(); len(got) != 1 || got[0] != "downtown" {
		t.Fatalf("rooms: %v", got)
	}

	res := m.Submit(ctx, sess.PlayerID, buildTx("t1", "apt", 2, 2))
	if !res.OK {
		t.Fatalf("routed build: %+v", res)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _, err := m.Join(ctx, "alice", "room_a", nil)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	if _, _, err := m.Join(ctx, "bob", "room_b", nil); err != nil {
		t.Fatalf("join b: %v", err)
	}

	if res := m.Submit(ctx, a.PlayerID, buildTx("t1", "apt", 2, 2)); !res.OK {
		t.Fatalf("build in a: %+v", res)
	}

	// Room B's aggregates see nothing of room A's build.
	rb := m.Room("room_b")
	if rb == nil {
		t.Fatalf("room_b missing")
	}
	sd, err := rb.RequestSupplyDemand(ctx)
	if err != nil {
		t.Fatalf("sd query: %v", err)
	}
	if got := sd.Table["housing"].Supply; got != 0 {
		t.Fatalf("room_b housing supply: got %v want 0", got)
	}
}

func TestSubmit_UnknownPlayer(t *testing.T) {
	m := newTestManager(t)
	res := m.Submit(context.Background(), "ghost", buildTx("t1", "apt", 1, 1))
	if res.OK {
		t.Fatalf("expected rejection")
	}
	if res.Code != protocol.ErrRoomNotFound {
		t.Fatalf("code: got %q want %q", res.Code, protocol.ErrRoomNotFound)
	}
}

func TestRestartRoom_DiscardsState(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, _, err := m.Join(ctx, "alice", "crashy", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res := m.Submit(ctx, sess.PlayerID, buildTx("t1", "apt", 2, 2)); !res.OK {
		t.Fatalf("build: %+v", res)
	}

	replacement, err := m.RestartRoom("crashy")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	sd, err := replacement.RequestSupplyDemand(ctx)
	if err != nil {
		t.Fatalf("sd query: %v", err)
	}
	if got := sd.Table["housing"].Supply; got != 0 {
		t.Fatalf("replacement should start empty: got %v", got)
	}

	// Residency was dropped with the old engine.
	res := m.Submit(ctx, sess.PlayerID, buildTx("t2", "apt", 3, 3))
	if res.OK || res.Code != protocol.ErrRoomNotFound {
		t.Fatalf("stale session should be rejected: %+v", res)
	}
}

func TestCloseRoom(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := m.Join(ctx, "alice", "short_lived", nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	m.CloseRoom("short_lived")
	if got := m.Room("short_lived"); got != nil {
		t.Fatalf("room should be gone")
	}
	if got := len(m.RoomIDs()); got != 0 {
		t.Fatalf("rooms after close: %d", got)
	}
}
