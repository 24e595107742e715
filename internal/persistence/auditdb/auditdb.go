// Package auditdb maintains an operational sqlite index of applied
// transactions. It is a secondary, queryable record; room state itself is
// never loaded from it.
package auditdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"metrogrid.gg/internal/sim/catalog"
	"metrogrid.gg/internal/sim/room"
)

// SQLiteIndex writes tx audit rows through a single writer goroutine so the
// room loops never touch database/sql directly.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan room.TxAuditEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Sized for bursty tx storms; full channel drops rather than stalls.
		ch: make(chan room.TxAuditEntry, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tx_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			tx_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			tx_type TEXT NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tx_log_room_tick ON tx_log(room_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_tx_log_player ON tx_log(player_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTxAudit implements room.TxAuditLogger. It never blocks: on a full
// channel the entry is dropped and the room loop continues.
func (s *SQLiteIndex) WriteTxAudit(entry room.TxAuditEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- entry:
	default:
	}
}

// UpsertCatalog records the active building catalog and its digest so audit
// rows can be interpreted against the exact defs that produced them.
func (s *SQLiteIndex) UpsertCatalog(cats *catalog.Catalog) error {
	if s == nil || cats == nil {
		return nil
	}
	b, err := json.Marshal(cats.Defs)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"buildings", cats.Digest, string(b), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// RecentTx returns the most recent audit rows for a room, newest first.
func (s *SQLiteIndex) RecentTx(ctx context.Context, roomID string, limit int) ([]room.TxAuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, tick, tx_id, player_id, tx_type, row, col, ok, COALESCE(code,'')
		 FROM tx_log WHERE room_id = ? ORDER BY id DESC LIMIT ?`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []room.TxAuditEntry
	for rows.Next() {
		var e room.TxAuditEntry
		var ok int
		if err := rows.Scan(&e.RoomID, &e.Tick, &e.TxID, &e.PlayerID, &e.TxType, &e.Row, &e.Col, &ok, &e.Code); err != nil {
			return nil, err
		}
		e.OK = ok != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insert, err := s.db.Prepare(
		`INSERT INTO tx_log(room_id,tick,tx_id,player_id,tx_type,row,col,ok,code,recorded_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		// Drain so Close does not hang; nothing gets indexed.
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flush := time.NewTicker(500 * time.Millisecond)
	defer flush.Stop()

	for {
		select {
		case e, open := <-s.ch:
			if !open {
				commit()
				return
			}
			begin()
			if tx == nil {
				continue
			}
			okInt := 0
			if e.OK {
				okInt = 1
			}
			_, _ = tx.Stmt(insert).Exec(
				e.RoomID, e.Tick, e.TxID, e.PlayerID, e.TxType,
				e.Row, e.Col, okInt, e.Code,
				time.Now().UTC().Format(time.RFC3339Nano),
			)
			opCount++
			if opCount >= commitEvery {
				commit()
			}
		case <-flush.C:
			if tx != nil && (opCount > 0 || time.Since(lastCommit) >= commitMaxWait) {
				commit()
			}
		}
	}
}
