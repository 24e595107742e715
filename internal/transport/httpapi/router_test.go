package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zstd"

	"metrogrid.gg/internal/protocol"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/room"
	"metrogrid.gg/internal/sim/roommgr"
	"metrogrid.gg/internal/sim/tuning"
)

const apiTestCatalog = `[
  {
    "id": "apt",
    "name": "Apartment",
    "category": "residential",
    "economics": {"build_cost": 900, "max_revenue": 80, "maintenance_base": 10, "build_days": 0},
    "resources": {"housing_provided": 10}
  }
]`

func newTestAPI(t *testing.T) (*roommgr.Manager, http.Handler) {
	t.Helper()
	cats, err := catalog.Parse([]byte(apiTestCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	mgr := roommgr.New(roommgr.Options{Tuning: tuning.Defaults(), Catalog: cats})
	t.Cleanup(mgr.Close)

	r := mux.NewRouter()
	NewAPI(mgr, nil, nil).Register(r)
	return mgr, r
}

func seedRoom(t *testing.T, mgr *roommgr.Manager) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, _, err := mgr.Join(ctx, "alice", "downtown", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	res := mgr.Submit(ctx, sess.PlayerID, protocol.TxMsg{
		Type: protocol.TypeTx, ID: "t1", TxType: protocol.TxBuild,
		Row: 2, Col: 2, BuildingType: "apt",
	})
	if !res.OK {
		t.Fatalf("build: %+v", res)
	}
	return sess.PlayerID
}

func TestRoutes_UnknownRoom(t *testing.T) {
	_, h := newTestAPI(t)
	for _, path := range []string{
		"/v1/rooms/nope/stats",
		"/v1/rooms/nope/supplydemand",
		"/v1/rooms/nope/performance/1/1",
		"/v1/rooms/nope/landvalue/1/1",
		"/v1/admin/rooms/nope/snapshot",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: got %d want 404", path, rec.Code)
		}
	}
}

func TestPerformanceRoute(t *testing.T) {
	mgr, h := newTestAPI(t)
	seedRoom(t, mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/performance/2/2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var res room.PerfResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Found {
		t.Fatalf("expected performance: %+v", res)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/performance/9/9", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty parcel: got %d want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/performance/x/y", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad coordinate: got %d want 400", rec.Code)
	}
}

func TestLandValueRoute(t *testing.T) {
	mgr, h := newTestAPI(t)
	seedRoom(t, mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/landvalue/5/5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var res room.LandValueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Value <= 0 {
		t.Fatalf("land value: %+v", res)
	}
	if res.Cached {
		t.Fatalf("first read should be a cache miss")
	}

	// Second read inside the TTL is served from cache.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/landvalue/5/5", nil))
	var again room.LandValueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !again.Cached {
		t.Fatalf("second read should hit the cache")
	}
	if again.Value != res.Value {
		t.Fatalf("cached value diverged: %d vs %d", again.Value, res.Value)
	}
}

func TestSnapshotRoute_ZstdPayload(t *testing.T) {
	mgr, h := newTestAPI(t)
	seedRoom(t, mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/rooms/downtown/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "zstd" {
		t.Fatalf("encoding: got %q", got)
	}

	dec, err := zstd.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var snap room.Snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RoomID != "downtown" {
		t.Fatalf("room id: got %q", snap.RoomID)
	}
	if len(snap.Parcels) != 1 {
		t.Fatalf("parcels: %+v", snap.Parcels)
	}
}

func TestRestartRoute(t *testing.T) {
	mgr, h := newTestAPI(t)
	seedRoom(t, mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/rooms/downtown/restart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	// The replacement room starts empty.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/performance/2/2", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("replacement room should be empty: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/rooms/ghost/restart", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown room restart: got %d", rec.Code)
	}
}

func TestTxLogRoute_Disabled(t *testing.T) {
	_, h := newTestAPI(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/downtown/txlog", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("disabled audit index: got %d want 501", rec.Code)
	}
}
