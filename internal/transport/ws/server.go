package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"metrogrid.gg/internal/auth"
	"metrogrid.gg/internal/protocol"
	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/roommgr"
	"metrogrid.gg/internal/sim/tuning"
)

const resumeTokenTTL = 24 * time.Hour

type Server struct {
	mgr    *roommgr.Manager
	cats   *catalog.Catalog
	tune   tuning.Tuning
	secret []byte
	log    *logrus.Entry

	upgrader websocket.Upgrader
}

func NewServer(mgr *roommgr.Manager, cats *catalog.Catalog, tune tuning.Tuning, secret []byte, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		mgr:    mgr,
		cats:   cats,
		tune:   tune,
		secret: secret,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out := s.handshake(conn)
		if sess.PlayerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeTx {
				continue
			}
			var tx protocol.TxMsg
			if err := json.Unmarshal(msg, &tx); err != nil {
				continue
			}
			if tx.ProtocolVersion != protocol.Version {
				continue
			}
			res := s.mgr.Submit(ctx, sess.PlayerID, tx)
			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			// All writes go through the writer goroutine; results share the
			// outbound channel with broadcasts.
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		s.mgr.Leave(sess.PlayerID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (roommgr.Session, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return roommgr.Session{}, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return roommgr.Session{}, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return roommgr.Session{}, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return roommgr.Session{}, nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	out := make(chan []byte, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sess roommgr.Session
	var balance float64

	// Resume path: a valid token re-attaches to the old player and room.
	if hello.Auth != nil && strings.TrimSpace(hello.Auth.Token) != "" {
		if claims, err := auth.Parse(s.secret, strings.TrimSpace(hello.Auth.Token)); err == nil {
			if got, jr, err := s.mgr.Attach(ctx, claims.PlayerID, claims.RoomID, out); err == nil {
				sess = got
				balance = jr.Balance
			}
		}
	}
	if sess.PlayerID == "" {
		got, jr, err := s.mgr.Join(ctx, hello.PlayerName, hello.RoomPreference, out)
		if err != nil {
			closePolicy(conn, "join failed")
			return roommgr.Session{}, nil
		}
		sess = got
		balance = jr.Balance
	}

	token, err := auth.Issue(s.secret, sess.PlayerID, sess.RoomID, resumeTokenTTL)
	if err != nil {
		s.log.WithError(err).Warn("resume token issue failed")
	}

	params := protocol.RoomParams{
		Rows:       s.tune.GridRows,
		Cols:       s.tune.GridCols,
		TickRateHz: s.tune.TickRateHz,
		DayTicks:   s.tune.DayTicks,
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        sess.PlayerID,
		RoomID:          sess.RoomID,
		ResumeToken:     token,
		Balance:         balance,
		RoomParams:      params,
		CatalogDigest:   s.cats.Digest,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return roommgr.Session{}, nil
	}

	catMsg := protocol.CatalogMsg{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Digest:          s.cats.Digest,
		Data:            s.cats.Defs,
	}
	if err := writeJSON(conn, catMsg); err != nil {
		return roommgr.Session{}, nil
	}

	return sess, out
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
