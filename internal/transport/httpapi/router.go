package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"metrogrid.gg/internal/sim/room"
	"metrogrid.gg/internal/sim/roommgr"
)

// AuditQuerier reads back recent transactions from the audit index.
type AuditQuerier interface {
	RecentTx(ctx context.Context, roomID string, limit int) ([]room.TxAuditEntry, error)
}

// API serves the pull-side economic snapshot queries. Reads go through each
// room's query channel, so they serialize with mutations and never observe a
// torn intermediate state.
type API struct {
	mgr   *roommgr.Manager
	audit AuditQuerier
	log   *logrus.Entry
}

func NewAPI(mgr *roommgr.Manager, audit AuditQuerier, log *logrus.Entry) *API {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &API{mgr: mgr, audit: audit, log: log}
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/rooms", a.handleRooms).Methods(http.MethodGet)
	r.HandleFunc("/v1/rooms/{room}/stats", a.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/rooms/{room}/supplydemand", a.handleSupplyDemand).Methods(http.MethodGet)
	r.HandleFunc("/v1/rooms/{room}/performance/{row}/{col}", a.handlePerformance).Methods(http.MethodGet)
	r.HandleFunc("/v1/rooms/{room}/landvalue/{row}/{col}", a.handleLandValue).Methods(http.MethodGet)
	r.HandleFunc("/v1/rooms/{room}/txlog", a.handleTxLog).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/rooms/{room}/snapshot", a.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/rooms/{room}/restart", a.handleRestart).Methods(http.MethodPost)
}

func (a *API) roomOr404(w http.ResponseWriter, req *http.Request) *room.Room {
	id := mux.Vars(req)["room"]
	r := a.mgr.Room(id)
	if r == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return nil
	}
	return r
}

func coordVars(req *http.Request) (room.Coord, bool) {
	vars := mux.Vars(req)
	row, err1 := strconv.Atoi(vars["row"])
	col, err2 := strconv.Atoi(vars["col"])
	if err1 != nil || err2 != nil {
		return room.Coord{}, false
	}
	return room.Coord{Row: row, Col: col}, true
}

func (a *API) handleRooms(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, map[string]any{"rooms": a.mgr.RoomIDs()})
}

func (a *API) handleStats(w http.ResponseWriter, req *http.Request) {
	r := a.roomOr404(w, req)
	if r == nil {
		return
	}
	res, err := r.RequestStats(req.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, res)
}

func (a *API) handleSupplyDemand(w http.ResponseWriter, req *http.Request) {
	r := a.roomOr404(w, req)
	if r == nil {
		return
	}
	res, err := r.RequestSupplyDemand(req.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, res)
}

func (a *API) handlePerformance(w http.ResponseWriter, req *http.Request) {
	r := a.roomOr404(w, req)
	if r == nil {
		return
	}
	co, ok := coordVars(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad coordinate")
		return
	}
	res, err := r.RequestPerformance(req.Context(), co)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !res.Found {
		// Absence is an explicit empty result, not an error path.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(res)
		return
	}
	writeJSON(w, res)
}

func (a *API) handleLandValue(w http.ResponseWriter, req *http.Request) {
	r := a.roomOr404(w, req)
	if r == nil {
		return
	}
	co, ok := coordVars(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad coordinate")
		return
	}
	res, err := r.RequestLandValue(req.Context(), co)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, res)
}

// handleSnapshot streams the room's committed state as zstd-compressed JSON.
func (a *API) handleSnapshot(w http.ResponseWriter, req *http.Request) {
	r := a.roomOr404(w, req)
	if r == nil {
		return
	}
	snap, err := r.RequestSnapshot(req.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "zstd")
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer enc.Close()
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		a.log.WithError(err).Warn("snapshot encode failed")
	}
}

func (a *API) handleTxLog(w http.ResponseWriter, req *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusNotImplemented, "audit index disabled")
		return
	}
	id := mux.Vars(req)["room"]
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	entries, err := a.audit.RecentTx(req.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"room": id, "entries": entries})
}

func (a *API) handleRestart(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["room"]
	if _, err := a.mgr.RestartRoom(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, map[string]any{"restarted": id})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
