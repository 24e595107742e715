package room

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"metrogrid.gg/internal/protocol"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/tuning"
)

type Config struct {
	ID         string
	Rows       int
	Cols       int
	TickRateHz int
	DayTicks   int
}

// JoinRequest adds a player (or re-attaches one) to the room.
type JoinRequest struct {
	PlayerID string // non-empty on resume
	Name     string
	Out      chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	PlayerID string
	Name     string
	Balance  float64
	Rejoined bool
}

type txEnvelope struct {
	PlayerID string
	Msg      protocol.TxMsg
	Resp     chan protocol.TxResultMsg
}

type clientState struct {
	Out chan []byte
}

// TxAuditEntry is one applied (or rejected) transaction, for the operational
// audit index.
type TxAuditEntry struct {
	RoomID   string `json:"room_id"`
	Tick     uint64 `json:"tick"`
	TxID     string `json:"tx_id"`
	PlayerID string `json:"player_id"`
	TxType   string `json:"tx_type"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	OK       bool   `json:"ok"`
	Code     string `json:"code,omitempty"`
}

// TxAuditLogger records applied transactions. Implementations must not block
// the room loop.
type TxAuditLogger interface {
	WriteTxAudit(entry TxAuditEntry)
}

// Room is a single-goroutine authoritative economic engine for one isolated
// multiplayer room. All mutable state is accessed only from the loop
// goroutine; rooms share nothing but the immutable catalog.
type Room struct {
	cfg  Config
	tune tuning.Tuning
	cats *catalog.Catalog

	gov     GovernanceService
	transit TransportNetwork
	log     *logrus.Entry
	audit   TxAuditLogger

	tick        atomic.Uint64
	quarantined atomic.Bool

	grid    *Grid
	players map[string]*Player
	clients map[string]*clientState
	cache   *EconomicCache
	sd      SupplyDemandTable
	sdDirty bool

	quarantineReason string
	lastStats        CityStatistics
	degradedTick     bool

	txCh  chan txEnvelope
	join  chan JoinRequest
	leave chan string
	query chan queryReq
	stop  chan struct{}
}

func (r *Room) newPlayerID() string { return uuid.NewString() }

func New(cfg Config, tune tuning.Tuning, cats *catalog.Catalog, gov GovernanceService, transit TransportNetwork, log *logrus.Entry) *Room {
	if gov == nil {
		gov = &StaticGovernance{Rate: DefaultLVTRate}
	}
	if transit == nil {
		transit = GridTransport{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Room{
		cfg:     cfg,
		tune:    tune,
		cats:    cats,
		gov:     gov,
		transit: transit,
		log:     log.WithField("room", cfg.ID),
		grid:    NewGrid(cfg.Rows, cfg.Cols),
		players: map[string]*Player{},
		clients: map[string]*clientState{},
		cache:   NewEconomicCache(time.Duration(tune.LandValue.CacheTTLMs) * time.Millisecond),
		txCh:    make(chan txEnvelope, 64),
		join:    make(chan JoinRequest, 16),
		leave:   make(chan string, 16),
		query:   make(chan queryReq, 64),
		stop:    make(chan struct{}),
	}
	r.sd = AggregateSupplyDemand(r.grid, cats)
	return r
}

func (r *Room) ID() string          { return r.cfg.ID }
func (r *Room) CurrentTick() uint64 { return r.tick.Load() }

// Quarantined reports whether the engine detected an invariant violation and
// refuses further mutations. The manager should replace the room.
func (r *Room) Quarantined() bool { return r.quarantined.Load() }

func (r *Room) SetAuditLogger(l TxAuditLogger) { r.audit = l }

// MemberCount is loop-owned; exposed for tests and the manager via queries.
func (r *Room) memberCount() int { return len(r.clients) }

// Run drives the room until the context is cancelled or Stop is called.
// Transactions apply immediately in arrival order; the ticker fires
// housekeeping between transactions, never during one.
func (r *Room) Run(ctx context.Context) error {
	hz := r.cfg.TickRateHz
	if hz <= 0 {
		hz = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case env := <-r.txCh:
			res := r.applyTx(env.PlayerID, env.Msg)
			if env.Resp != nil {
				env.Resp <- res
			}
		case q := <-r.query:
			r.handleQuery(q)
		case <-ticker.C:
			r.housekeep()
		}
	}
}

func (r *Room) Stop() { close(r.stop) }

// Submit serializes one mutating transaction against the room. A transaction
// that cannot enter the room gate within the configured wait is rejected with
// E_BUSY rather than queued indefinitely.
func (r *Room) Submit(ctx context.Context, playerID string, msg protocol.TxMsg) protocol.TxResultMsg {
	env := txEnvelope{PlayerID: playerID, Msg: msg, Resp: make(chan protocol.TxResultMsg, 1)}

	wait := time.Duration(r.tune.Tx.SubmitTimeoutMs) * time.Millisecond
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case r.txCh <- env:
	case <-timer.C:
		return busyResult(msg.ID, r.tick.Load())
	case <-ctx.Done():
		return busyResult(msg.ID, r.tick.Load())
	case <-r.stop:
		return errorResult(msg.ID, r.tick.Load(), protocol.ErrRoomNotFound, "room closed")
	}

	select {
	case res := <-env.Resp:
		return res
	case <-r.stop:
		return errorResult(msg.ID, r.tick.Load(), protocol.ErrRoomNotFound, "room closed")
	}
}

// RequestJoin adds a player from outside the loop goroutine.
func (r *Room) RequestJoin(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	if req.Resp == nil {
		req.Resp = make(chan JoinResponse, 1)
	}
	select {
	case r.join <- req:
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp, nil
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
}

// Leave detaches a player's connection. The roster entry survives so a resume
// token can re-attach to the same balance.
func (r *Room) Leave(playerID string) {
	select {
	case r.leave <- playerID:
	default:
	}
}

func (r *Room) handleJoin(req JoinRequest) {
	resp := JoinResponse{}
	if req.PlayerID != "" {
		if p, ok := r.players[req.PlayerID]; ok {
			resp = JoinResponse{PlayerID: p.ID, Name: p.Name, Balance: p.Balance, Rejoined: true}
		}
	}
	if resp.PlayerID == "" {
		id := req.PlayerID
		if id == "" {
			id = r.newPlayerID()
		}
		p := &Player{ID: id, Name: req.Name, Balance: r.tune.StartingBalance}
		r.players[id] = p
		resp = JoinResponse{PlayerID: id, Name: req.Name, Balance: p.Balance}
	}
	if req.Out != nil {
		r.clients[resp.PlayerID] = &clientState{Out: req.Out}
	}
	if req.Resp != nil {
		req.Resp <- resp
	}
	r.log.WithFields(logrus.Fields{"player": resp.PlayerID, "rejoined": resp.Rejoined}).Info("player joined")
}

func (r *Room) handleLeave(playerID string) {
	delete(r.clients, playerID)
	r.log.WithField("player", playerID).Info("player left")
}

// quarantine marks the room fatal. State may be corrupted, so every further
// transaction is rejected until the manager replaces the engine.
func (r *Room) quarantine(reason string) {
	if r.quarantined.Load() {
		return
	}
	r.quarantined.Store(true)
	r.quarantineReason = reason
	r.log.WithField("reason", reason).Error("room quarantined")
}

func busyResult(ref string, tick uint64) protocol.TxResultMsg {
	return errorResult(ref, tick, protocol.ErrBusy, "room gate busy, retry")
}

func errorResult(ref string, tick uint64, code, message string) protocol.TxResultMsg {
	return protocol.TxResultMsg{
		Type:    protocol.TypeTxResult,
		Ref:     ref,
		OK:      false,
		Code:    code,
		Message: message,
		Tick:    tick,
	}
}
