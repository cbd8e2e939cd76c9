// Package indexdb keeps a sqlite read model of scan runs: one row per run, per scanned
// dimension and per visited region.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"regionscan.dev/internal/scan"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRegionTotal atomic.Uint64
}

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqRunFinish
	reqDimension
	reqRegion
)

type req struct {
	kind reqKind

	run       RunRow
	dimension DimensionRow
	region    RegionRow
}

type RunRow struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	Save       string
	Zone       string
	Proto      string
	Threads    int
	Format     string
	Output     string
	Status     string
}

type DimensionRow struct {
	RunID         string
	Dimension     string
	Version       string
	Outcome       string
	RegionsTried  int
	RegionsFound  int
	RegionsCached int
	Chunks        uint64
	Blocks        uint64
	Protochunks   uint64
	Area          uint64
	Filtered      int
	ElapsedMS     int64
	Error         string
}

type RegionRow struct {
	RunID     string
	Dimension string
	X, Z      int
	Found     bool
	Cached    bool
	Chunks    uint64
	Blocks    uint64
	ElapsedUS int64
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropRegionTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteIndex{
		db: db,
		// Region rows arrive from every scan worker at once.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func open(path string) (*sql.DB, error) {
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
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			save TEXT NOT NULL,
			zone TEXT NOT NULL,
			proto TEXT NOT NULL,
			threads INTEGER NOT NULL,
			format TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS dimensions (
			run_id TEXT NOT NULL,
			dim TEXT NOT NULL,
			version TEXT NOT NULL,
			outcome TEXT NOT NULL,
			regions_tried INTEGER NOT NULL,
			regions_found INTEGER NOT NULL,
			regions_cached INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			protochunks INTEGER NOT NULL,
			area INTEGER NOT NULL,
			filtered INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, dim)
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			run_id TEXT NOT NULL,
			dim TEXT NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			found INTEGER NOT NULL,
			cached INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			PRIMARY KEY (run_id, dim, x, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_pos ON regions(dim, x, z);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropRegionTotal: s.dropRegionTotal.Load(),
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// BeginRun and the other run/dimension writers block while the queue is full; only
// region rows may be dropped.
func (s *SQLiteIndex) BeginRun(r RunRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.StartedAt == "" {
		r.StartedAt = now()
	}
	if r.Status == "" {
		r.Status = "running"
	}
	s.ch <- req{kind: reqRunStart, run: r}
}

func (s *SQLiteIndex) FinishRun(runID, status string) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqRunFinish, run: RunRow{RunID: runID, Status: status, FinishedAt: now()}}
}

func (s *SQLiteIndex) RecordDimension(d DimensionRow) {
	if s == nil || s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqDimension, dimension: d}
}

func DimensionRowFrom(runID string, res scan.DimensionResult, version string, filtered int, runErr error) DimensionRow {
	f := res.Frequencies
	d := DimensionRow{
		RunID:         runID,
		Dimension:     res.Dimension,
		Version:       version,
		Outcome:       res.Outcome.String(),
		RegionsTried:  res.RegionsTried,
		RegionsFound:  res.RegionsFound,
		RegionsCached: res.RegionsCached,
		Chunks:        f.ChunksCounted,
		Blocks:        f.BlocksCounted,
		Protochunks:   f.ProtochunksSeen,
		Area:          f.Area,
		Filtered:      filtered,
		ElapsedMS:     res.Elapsed.Milliseconds(),
	}
	if runErr != nil {
		d.Outcome = "error"
		d.Error = runErr.Error()
	}
	return d
}

func (s *SQLiteIndex) RecordRegion(runID string, ev scan.RegionEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	r := RegionRow{
		RunID:     runID,
		Dimension: ev.Dimension,
		X:         ev.X,
		Z:         ev.Z,
		Found:     ev.Found,
		Cached:    ev.Cached,
		Chunks:    ev.ChunksCounted,
		Blocks:    ev.BlocksCounted,
		ElapsedUS: ev.Elapsed.Microseconds(),
	}
	select {
	case s.ch <- req{kind: reqRegion, region: r}:
	default:
		// The event log keeps every region even when the index falls behind.
		s.dropRegionTotal.Add(1)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,started_at,save,zone,proto,threads,format,output,status) VALUES(?,?,?,?,?,?,?,?,?)`)
	finishRun, _ := s.db.Prepare(`UPDATE runs SET finished_at=?, status=? WHERE run_id=?`)
	insertDim, _ := s.db.Prepare(`INSERT OR REPLACE INTO dimensions(run_id,dim,version,outcome,regions_tried,regions_found,regions_cached,chunks,blocks,protochunks,area,filtered,elapsed_ms,error) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertRegion, _ := s.db.Prepare(`INSERT OR REPLACE INTO regions(run_id,dim,x,z,found,cached,chunks,blocks,elapsed_us) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, finishRun, insertDim, insertRegion} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
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
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRunStart:
			ru := r.run
			exec(insertRun, ru.RunID, ru.StartedAt, ru.Save, ru.Zone, ru.Proto, ru.Threads, ru.Format, ru.Output, ru.Status)
		case reqRunFinish:
			exec(finishRun, r.run.FinishedAt, r.run.Status, r.run.RunID)
		case reqDimension:
			d := r.dimension
			exec(insertDim, d.RunID, d.Dimension, d.Version, d.Outcome,
				d.RegionsTried, d.RegionsFound, d.RegionsCached,
				int64(d.Chunks), int64(d.Blocks), int64(d.Protochunks), int64(d.Area),
				d.Filtered, d.ElapsedMS, d.Error)
		case reqRegion:
			g := r.region
			exec(insertRegion, g.RunID, g.Dimension, g.X, g.Z, boolInt(g.Found), boolInt(g.Cached),
				int64(g.Chunks), int64(g.Blocks), g.ElapsedUS)
		}
		// Run boundaries are committed right away so readers see them.
		if r.kind == reqRunStart || r.kind == reqRunFinish {
			commit()
			continue
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
