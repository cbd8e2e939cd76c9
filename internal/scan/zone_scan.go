package scan

import (
	"runtime"
	"time"
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeNoRegions: none of the zone's region files could be opened.
	OutcomeNoRegions
	// OutcomeNoChunks: regions were found but none contributed a chunk.
	OutcomeNoChunks
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoRegions:
		return "no_regions"
	case OutcomeNoChunks:
		return "no_chunks"
	default:
		return "ok"
	}
}

// RegionEvent describes one region visited by ScanZone.
type RegionEvent struct {
	Dimension     string        `json:"dim"`
	X             int           `json:"x"`
	Z             int           `json:"z"`
	Found         bool          `json:"found"`
	Cached        bool          `json:"cached,omitempty"`
	ChunksCounted uint64        `json:"chunks"`
	BlocksCounted uint64        `json:"blocks"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

type CacheKey struct {
	Dimension string
	X, Z      int
	Proto     ProtoOption
	Stamp     string
}

// RegionCache stores per-region results between runs. Implementations must be safe for
// concurrent use; failures are not fatal to a scan.
type RegionCache interface {
	Get(key CacheKey) (BlockFrequencies, bool)
	Put(key CacheKey, f BlockFrequencies) error
}

type Options struct {
	Dimension string
	Zone      *Zone
	// Threads bounds the worker pool; 0 uses runtime.NumCPU().
	Threads int
	Proto   ProtoOption
	Cache   RegionCache
	// OnRegion is called from worker goroutines.
	OnRegion func(RegionEvent)
}

type DimensionResult struct {
	Dimension     string
	Frequencies   BlockFrequencies
	RegionsTried  int
	RegionsFound  int
	RegionsCached int
	Elapsed       time.Duration
	Outcome       Outcome
}

type workerResult struct {
	acc    BlockFrequencies
	found  int
	cached int
}

// ScanZone maps every region of the zone to frequencies on a bounded worker pool and
// reduces them into one per-dimension table. Each worker folds into its own accumulator;
// the accumulators are merged after all workers finish.
func ScanZone(src Source, opts Options) (DimensionResult, error) {
	start := time.Now()
	res := DimensionResult{Dimension: opts.Dimension}

	coords, err := coordsFor(src, opts.Zone)
	if err != nil {
		return res, err
	}
	res.RegionsTried = len(coords)

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if threads > len(coords) {
		threads = len(coords)
	}
	if threads < 1 {
		threads = 1
	}

	jobs := make(chan RegionCoord)
	results := make(chan workerResult, threads)
	for i := 0; i < threads; i++ {
		go func() {
			wr := workerResult{acc: EmptyFrequencies(opts.Dimension)}
			for rc := range jobs {
				f, ev := scanRegion(src, rc, opts)
				if opts.OnRegion != nil {
					opts.OnRegion(ev)
				}
				if !ev.Found {
					continue
				}
				wr.found++
				if ev.Cached {
					wr.cached++
				}
				MergeInto(&wr.acc, f)
			}
			results <- wr
		}()
	}
	for _, rc := range coords {
		jobs <- rc
	}
	close(jobs)

	total := EmptyFrequencies(opts.Dimension)
	for i := 0; i < threads; i++ {
		wr := <-results
		res.RegionsFound += wr.found
		res.RegionsCached += wr.cached
		MergeInto(&total, wr.acc)
	}

	res.Frequencies = total
	res.Elapsed = time.Since(start)
	switch {
	case res.RegionsFound == 0:
		res.Outcome = OutcomeNoRegions
	case total.ChunksCounted == 0:
		res.Outcome = OutcomeNoChunks
	default:
		res.Outcome = OutcomeOK
	}
	return res, nil
}

func scanRegion(src Source, rc RegionCoord, opts Options) (BlockFrequencies, RegionEvent) {
	start := time.Now()
	ev := RegionEvent{Dimension: opts.Dimension, X: rc.X, Z: rc.Z}

	r, ok := src.Region(rc.X, rc.Z)
	if !ok {
		ev.Elapsed = time.Since(start)
		return BlockFrequencies{}, ev
	}
	defer r.Close()
	ev.Found = true

	var key CacheKey
	useCache := false
	if opts.Cache != nil {
		if st, ok := r.(Stamper); ok {
			key = CacheKey{Dimension: opts.Dimension, X: rc.X, Z: rc.Z, Proto: opts.Proto, Stamp: st.Stamp()}
			useCache = key.Stamp != ""
		}
	}
	if useCache {
		if f, hit := opts.Cache.Get(key); hit {
			ev.Cached = true
			ev.ChunksCounted = f.ChunksCounted
			ev.BlocksCounted = f.BlocksCounted
			ev.Elapsed = time.Since(start)
			return f, ev
		}
	}

	f := RegionFrequencies(r, opts.Proto, opts.Dimension)
	if useCache {
		// Stored before the caller merges, since merging may rescale f's maps.
		_ = opts.Cache.Put(key, f)
	}
	ev.ChunksCounted = f.ChunksCounted
	ev.BlocksCounted = f.BlocksCounted
	ev.Elapsed = time.Since(start)
	return f, ev
}
