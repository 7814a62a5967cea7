// Package indexdb keeps a queryable SQLite index of the tick stream:
// assignments and per-tick ledger totals. The compressed JSONL tick log stays
// the source of truth; the index may drop entries when its writer falls
// behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/tuning"
	"stockyard.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB
	// Readers go through their own pool so queries never wait on the writer's
	// open batch.
	reader *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTickTotal  atomic.Uint64
	writeFailTotal atomic.Uint64
	ticksIndexed   atomic.Uint64
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	WriteFailTotal uint64 `json:"write_fail_total"`
	TicksIndexed   uint64 `json:"ticks_indexed"`
}

type req struct {
	tick world.TickLogEntry
	// Set for flush requests; closed once the open batch is committed.
	flushed chan struct{}
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
	reader, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	reader.SetMaxOpenConns(4)

	s := &SQLiteIndex{
		db:     db,
		reader: reader,
		// Room for bursts of busy ticks without stalling the sim.
		ch: make(chan req, 65536),
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
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			assignments INTEGER NOT NULL,
			events INTEGER NOT NULL,
			queued_json TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			worker_id TEXT NOT NULL,
			team INTEGER NOT NULL,
			kind TEXT NOT NULL,
			target_id TEXT NOT NULL,
			dist_sq INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_worker_tick ON assignments(worker_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_target_tick ON assignments(target_id, tick);`,
		`CREATE TABLE IF NOT EXISTS ledger_totals (
			tick INTEGER NOT NULL,
			team INTEGER NOT NULL,
			resource TEXT NOT NULL,
			stored INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			reserved INTEGER NOT NULL,
			available INTEGER NOT NULL,
			PRIMARY KEY (tick, team, resource)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_team_resource ON ledger_totals(team, resource, tick);`,
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
		_ = s.reader.Close()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTickTotal.Load(),
		WriteFailTotal: s.writeFailTotal.Load(),
		TicksIndexed:   s.ticksIndexed.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTickTotal.Add(1)
	}
	return nil
}

// Flush commits everything queued so far, so queries see it.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{flushed: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertConfig records the tuning and catalog the run was started with.
func (s *SQLiteIndex) UpsertConfig(tune tuning.Tuning, cat *resources.Catalog) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name string
		json []byte
	}
	var rows []kv
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", json: b})
	}
	if cat != nil {
		if b, err := json.Marshal(cat); err == nil {
			rows = append(rows, kv{name: "resources", json: b})
		}
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		sum := sha256.Sum256(r.json)
		if _, err := stmt.Exec(r.name, hex.EncodeToString(sum[:]), string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type statements struct {
	tick, assignment, ledger *sql.Stmt
}

func prepare(db *sql.DB) (statements, error) {
	var st statements
	var err error
	if st.tick, err = db.Prepare(`INSERT OR REPLACE INTO ticks(tick,assignments,events,queued_json,raw_json) VALUES(?,?,?,?,?)`); err != nil {
		return st, err
	}
	if st.assignment, err = db.Prepare(`INSERT OR REPLACE INTO assignments(tick,seq,source,worker_id,team,kind,target_id,dist_sq) VALUES(?,?,?,?,?,?,?,?)`); err != nil {
		st.close()
		return st, err
	}
	if st.ledger, err = db.Prepare(`INSERT OR REPLACE INTO ledger_totals(tick,team,resource,stored,capacity,reserved,available) VALUES(?,?,?,?,?,?,?)`); err != nil {
		st.close()
		return st, err
	}
	return st, nil
}

func (st statements) close() {
	for _, x := range []*sql.Stmt{st.tick, st.assignment, st.ledger} {
		if x != nil {
			_ = x.Close()
		}
	}
}

// batch groups writes into one transaction, committed after maxOps rows or
// maxWait, whichever comes first.
type batch struct {
	db      *sql.DB
	tx      *sql.Tx
	ops     int
	started time.Time

	maxOps  int
	maxWait time.Duration
}

func (b *batch) open() error {
	if b.tx != nil {
		return nil
	}
	tx, err := b.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	b.tx, b.ops, b.started = tx, 0, time.Now()
	return nil
}

func (b *batch) due() bool {
	return b.tx != nil && (b.ops >= b.maxOps || time.Since(b.started) >= b.maxWait)
}

func (b *batch) commit() error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	return err
}

func (b *batch) rollback() {
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
}

func (s *SQLiteIndex) loop() {
	st, err := prepare(s.db)
	if err != nil {
		// Drain so WriteTick never blocks; every entry counts as a failure.
		for r := range s.ch {
			if r.flushed != nil {
				close(r.flushed)
				continue
			}
			s.writeFailTotal.Add(1)
		}
		return
	}
	defer st.close()

	b := &batch{db: s.db, maxOps: 2000, maxWait: 2 * time.Second}
	for r := range s.ch {
		if r.flushed != nil {
			if err := b.commit(); err != nil {
				s.writeFailTotal.Add(1)
			}
			close(r.flushed)
			continue
		}
		if err := b.open(); err != nil {
			s.writeFailTotal.Add(1)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		n, err := writeTick(b.tx, st, r.tick)
		if err != nil {
			b.rollback()
			s.writeFailTotal.Add(1)
			continue
		}
		b.ops += n
		s.ticksIndexed.Add(1)
		if b.due() {
			if err := b.commit(); err != nil {
				s.writeFailTotal.Add(1)
			}
		}
	}
	if err := b.commit(); err != nil {
		s.writeFailTotal.Add(1)
	}
}

// writeTick inserts one entry and returns the number of rows written.
func writeTick(tx *sql.Tx, st statements, e world.TickLogEntry) (int, error) {
	raw, _ := json.Marshal(e)
	queued, _ := json.Marshal(e.Queued)
	if _, err := tx.Stmt(st.tick).Exec(int64(e.Tick), len(e.Assignments), e.Events, string(queued), string(raw)); err != nil {
		return 0, err
	}
	rows := 1
	for i, a := range e.Assignments {
		if _, err := tx.Stmt(st.assignment).Exec(int64(e.Tick), i, a.Source, a.WorkerID, int(a.Team), string(a.Kind), a.TargetID, a.DistSq); err != nil {
			return rows, err
		}
		rows++
	}
	for _, tl := range e.Ledger {
		for _, v := range tl.Entries {
			if _, err := tx.Stmt(st.ledger).Exec(int64(e.Tick), int(tl.Team), string(v.Resource), v.Stored, v.Capacity, v.Reserved, v.Available); err != nil {
				return rows, err
			}
			rows++
		}
	}
	return rows, nil
}
