package indexdb

import (
	"database/sql"
)

// Reader runs queries against an index without starting a writer.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Runs returns the most recent runs first.
func (r *Reader) Runs(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT run_id,started_at,COALESCE(finished_at,''),save,zone,proto,threads,format,output,status
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var ru RunRow
		if err := rows.Scan(&ru.RunID, &ru.StartedAt, &ru.FinishedAt, &ru.Save, &ru.Zone, &ru.Proto, &ru.Threads, &ru.Format, &ru.Output, &ru.Status); err != nil {
			return nil, err
		}
		out = append(out, ru)
	}
	return out, rows.Err()
}

func (r *Reader) Dimensions(runID string) ([]DimensionRow, error) {
	rows, err := r.db.Query(`SELECT run_id,dim,version,outcome,regions_tried,regions_found,regions_cached,chunks,blocks,protochunks,area,filtered,elapsed_ms,COALESCE(error,'')
		FROM dimensions WHERE run_id=? ORDER BY dim`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DimensionRow
	for rows.Next() {
		var (
			d                                 DimensionRow
			chunks, blocks, protochunks, area int64
		)
		if err := rows.Scan(&d.RunID, &d.Dimension, &d.Version, &d.Outcome, &d.RegionsTried, &d.RegionsFound, &d.RegionsCached,
			&chunks, &blocks, &protochunks, &area, &d.Filtered, &d.ElapsedMS, &d.Error); err != nil {
			return nil, err
		}
		d.Chunks, d.Blocks, d.Protochunks, d.Area = uint64(chunks), uint64(blocks), uint64(protochunks), uint64(area)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Regions lists the regions visited for one dimension of a run, ordered by x then z.
func (r *Reader) Regions(runID, dimension string) ([]RegionRow, error) {
	rows, err := r.db.Query(`SELECT run_id,dim,x,z,found,cached,chunks,blocks,elapsed_us
		FROM regions WHERE run_id=? AND dim=? ORDER BY x,z`, runID, dimension)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegionRow
	for rows.Next() {
		var (
			g              RegionRow
			found, cached  int
			chunks, blocks int64
		)
		if err := rows.Scan(&g.RunID, &g.Dimension, &g.X, &g.Z, &found, &cached, &chunks, &blocks, &g.ElapsedUS); err != nil {
			return nil, err
		}
		g.Found, g.Cached = found != 0, cached != 0
		g.Chunks, g.Blocks = uint64(chunks), uint64(blocks)
		out = append(out, g)
	}
	return out, rows.Err()
}
