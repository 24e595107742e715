package roommgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"metrogrid.gg/internal/protocol"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/room"
	"metrogrid.gg/internal/sim/tuning"
)

const requestTimeout = 3 * time.Second

// ErrRoomNotFound is returned for routing against an unknown room id.
var ErrRoomNotFound = errors.New("room not found")

// Session binds a connected player to a room.
type Session struct {
	PlayerID string
	RoomID   string
	Out      chan []byte
}

// Manager owns the set of room engines and routes player actions to the
// correct one. Rooms never share mutable state, so the manager needs no
// coordination beyond its own registry lock.
type Manager struct {
	mu sync.RWMutex

	rooms     map[string]*runtime
	residency map[string]string // player id -> room id

	tune    tuning.Tuning
	cats    *catalog.Catalog
	gov     func() room.GovernanceService
	transit room.TransportNetwork
	audit   room.TxAuditLogger
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type runtime struct {
	room   *room.Room
	cancel context.CancelFunc
}

// Options carries the collaborators shared by every room. Governance is a
// factory so each room can get an isolated instance when the implementation
// is stateful.
type Options struct {
	Tuning     tuning.Tuning
	Catalog    *catalog.Catalog
	Governance func() room.GovernanceService
	Transport  room.TransportNetwork
	Audit      room.TxAuditLogger
	Log        *logrus.Entry
}

func New(opts Options) *Manager {
	if opts.Governance == nil {
		opts.Governance = func() room.GovernanceService {
			return &room.StaticGovernance{Rate: room.DefaultLVTRate}
		}
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		rooms:     map[string]*runtime{},
		residency: map[string]string{},
		tune:      opts.Tuning,
		cats:      opts.Catalog,
		gov:       opts.Governance,
		transit:   opts.Transport,
		audit:     opts.Audit,
		log:       opts.Log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *Manager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Room(id string) *room.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rt := m.rooms[id]; rt != nil {
		return rt.room
	}
	return nil
}

// RoomFor resolves a player's current room.
func (m *Manager) RoomFor(playerID string) (*room.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.residency[playerID]
	if !ok {
		return nil, false
	}
	rt := m.rooms[id]
	if rt == nil {
		return nil, false
	}
	return rt.room, true
}

// Join routes a player to a room, creating it on demand. An empty preference
// starts a fresh room.
func (m *Manager) Join(ctx context.Context, name, roomPreference string, out chan []byte) (Session, room.JoinResponse, error) {
	target := roomPreference
	if target == "" {
		target = uuid.NewString()
	}
	r, err := m.ensureRoom(target)
	if err != nil {
		return Session{}, room.JoinResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := r.RequestJoin(ctx, room.JoinRequest{Name: name, Out: out})
	if err != nil {
		return Session{}, room.JoinResponse{}, fmt.Errorf("join request failed: %w", err)
	}

	m.mu.Lock()
	m.residency[resp.PlayerID] = target
	m.mu.Unlock()

	return Session{PlayerID: resp.PlayerID, RoomID: target, Out: out}, resp, nil
}

// Attach re-binds a resumed player to their room.
func (m *Manager) Attach(ctx context.Context, playerID, roomID string, out chan []byte) (Session, room.JoinResponse, error) {
	r := m.Room(roomID)
	if r == nil {
		return Session{}, room.JoinResponse{}, ErrRoomNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := r.RequestJoin(ctx, room.JoinRequest{PlayerID: playerID, Out: out})
	if err != nil {
		return Session{}, room.JoinResponse{}, fmt.Errorf("attach request failed: %w", err)
	}

	m.mu.Lock()
	m.residency[resp.PlayerID] = roomID
	m.mu.Unlock()

	return Session{PlayerID: resp.PlayerID, RoomID: roomID, Out: out}, resp, nil
}

// Leave detaches a player's connection from their room.
func (m *Manager) Leave(playerID string) {
	if r, ok := m.RoomFor(playerID); ok {
		r.Leave(playerID)
	}
}

// Submit routes one transaction to the player's room.
func (m *Manager) Submit(ctx context.Context, playerID string, msg protocol.TxMsg) protocol.TxResultMsg {
	r, ok := m.RoomFor(playerID)
	if !ok {
		return protocol.TxResultMsg{
			Type:    protocol.TypeTxResult,
			Ref:     msg.ID,
			OK:      false,
			Code:    protocol.ErrRoomNotFound,
			Message: "player has no room",
		}
	}
	return r.Submit(ctx, playerID, msg)
}

// ensureRoom returns an existing room or creates and starts a new one.
func (m *Manager) ensureRoom(id string) (*room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt := m.rooms[id]; rt != nil {
		return rt.room, nil
	}
	return m.startRoomLocked(id)
}

func (m *Manager) startRoomLocked(id string) (*room.Room, error) {
	r := room.New(room.Config{
		ID:         id,
		Rows:       m.tune.GridRows,
		Cols:       m.tune.GridCols,
		TickRateHz: m.tune.TickRateHz,
		DayTicks:   m.tune.DayTicks,
	}, m.tune, m.cats, m.gov(), m.transit, m.log)
	if m.audit != nil {
		r.SetAuditLogger(m.audit)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.rooms[id] = &runtime{room: r, cancel: cancel}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.WithError(err).WithField("room", id).Error("room loop exited")
		}
	}()
	m.log.WithField("room", id).Info("room started")
	return r, nil
}

// RestartRoom replaces a room's engine with a fresh one. Used after a
// quarantine: corrupted state is discarded rather than served.
func (m *Manager) RestartRoom(id string) (*room.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt := m.rooms[id]
	if rt == nil {
		return nil, ErrRoomNotFound
	}
	rt.cancel()
	rt.room.Stop()
	delete(m.rooms, id)
	for pid, rid := range m.residency {
		if rid == id {
			delete(m.residency, pid)
		}
	}
	return m.startRoomLocked(id)
}

// CloseRoom stops a room and drops its residency entries. Called when the
// last player leaves or a session timeout elapses.
func (m *Manager) CloseRoom(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt := m.rooms[id]
	if rt == nil {
		return
	}
	rt.cancel()
	rt.room.Stop()
	delete(m.rooms, id)
	for pid, rid := range m.residency {
		if rid == id {
			delete(m.residency, pid)
		}
	}
	m.log.WithField("room", id).Info("room closed")
}

// Close stops every room and waits for their loops to exit.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	for id, rt := range m.rooms {
		rt.room.Stop()
		delete(m.rooms, id)
	}
	m.residency = map[string]string{}
	m.mu.Unlock()
	m.wg.Wait()
}
