package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"regionscan.dev/internal/anvil"
	"regionscan.dev/internal/config"
	"regionscan.dev/internal/export"
	"regionscan.dev/internal/persistence/artifact"
	"regionscan.dev/internal/persistence/cache"
	"regionscan.dev/internal/persistence/indexdb"
	persistlog "regionscan.dev/internal/persistence/log"
	"regionscan.dev/internal/persistence/r2s3"
	"regionscan.dev/internal/persistence/snapshot"
	"regionscan.dev/internal/scan"
	"regionscan.dev/internal/transport/progress"
)

type runner struct {
	cfg   config.Config
	job   config.Job
	runID string
	ores  bool
	log   *log.Logger

	index    *indexdb.SQLiteIndex
	cache    *cache.Cache
	events   *persistlog.RegionLog
	progress *progress.Server
	httpSrv  *http.Server
	upload   *r2s3.Publisher

	exporter *export.Exporter
}

func newRunner(cfg config.Config, job config.Job, ores bool, logger *log.Logger) (*runner, error) {
	r := &runner{
		cfg:      cfg,
		job:      job,
		runID:    uuid.NewString(),
		ores:     ores,
		log:      logger,
		exporter: export.New(logger),
	}
	if cfg.IndexDB != "" {
		idx, err := indexdb.OpenSQLite(cfg.IndexDB)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		r.index = idx
	}
	if cfg.CacheDir != "" {
		c, err := cache.Open(cfg.CacheDir)
		if err != nil {
			r.close()
			return nil, err
		}
		r.cache = c
	}
	if cfg.EventsDir != "" {
		r.events = persistlog.NewRegionLog(cfg.EventsDir, r.runID)
	}
	if cfg.ProgressAddr != "" {
		ps := progress.NewServer(r.runID, cfg.Dims, logger)
		srv, addr, err := ps.ListenAndServe(cfg.ProgressAddr)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("progress: %w", err)
		}
		r.progress, r.httpSrv = ps, srv
		logger.Printf("progress stream on ws://%s%s", addr, progress.Path)
	}
	if cfg.Upload.Enabled() {
		client, err := r2s3.New(cfg.Upload.Endpoint, cfg.Upload.Bucket, cfg.Upload.Region, r2s3.Credentials{
			AccessKeyID:     os.Getenv("REGIONSCAN_UPLOAD_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("REGIONSCAN_UPLOAD_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			r.close()
			return nil, fmt.Errorf("upload: %w", err)
		}
		r.upload = r2s3.NewPublisher(client, cfg.Upload.Prefix, r.runID, 2, logger)
	}
	return r, nil
}

func (r *runner) close() {
	if r.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = r.httpSrv.Shutdown(ctx)
		cancel()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			r.log.Printf("close event log: %v", err)
		} else if r.events.Entries() > 0 {
			r.log.Printf("region events: %s (%d entries)", r.events.Path(), r.events.Entries())
			r.upload.Add(r.events.Path())
		}
	}
	if r.upload != nil {
		st := r.upload.Wait()
		r.log.Printf("upload: %d of %d artifacts published", st.Uploaded, st.Queued)
	}
	if r.cache != nil {
		if st, err := r.cache.Stats(); err == nil {
			r.log.Printf("cache: hits=%d misses=%d puts=%d entries=%d size=%s",
				st.Hits, st.Misses, st.Puts, st.Entries, humanize.Bytes(uint64(st.Bytes)))
		}
		_ = r.cache.Close()
	}
	if r.index != nil {
		if st := r.index.Stats(); st.DropRegionTotal > 0 {
			r.log.Printf("index: dropped %d region rows", st.DropRegionTotal)
		}
		_ = r.index.Close()
	}
}

// run scans every dimension of the job and writes the export. It returns the process exit
// code: 1 when any dimension failed or the export could not be written.
func (r *runner) run() int {
	zone := r.job.Zone.String()
	r.index.BeginRun(indexdb.RunRow{
		RunID:   r.runID,
		Save:    r.cfg.Path,
		Zone:    zone,
		Proto:   r.job.Proto.String(),
		Threads: r.cfg.Threads,
		Format:  r.cfg.Format,
		Output:  r.cfg.Output,
	})
	r.log.Printf("run %s: save=%s zone=%s proto=%s format=%s", r.runID, r.cfg.Path, zone, r.job.Proto, r.cfg.Format)

	var (
		dims     []export.Dimension
		snapDims []snapshot.DimensionV1
		failed   bool
	)
	for _, dj := range r.job.Dims {
		res, version, err := r.scanDimension(dj)
		versionLabel := ""
		if err == nil && res.Outcome == scan.OutcomeOK {
			versionLabel = version.String()
			snapDims = append(snapDims, snapshot.FromResult(res, version))
		}

		filtered := 0
		if err == nil && res.Outcome == scan.OutcomeOK && r.job.Cutoff != nil {
			filtered, err = scan.FilterRare(&res.Frequencies, *r.job.Cutoff)
			if err == nil && filtered > 0 {
				r.log.Printf("%s: dropped %d blocks rarer than %g", dj.ID, filtered, *r.job.Cutoff)
			}
		}

		r.index.RecordDimension(indexdb.DimensionRowFrom(r.runID, res, versionLabel, filtered, err))
		if r.progress != nil {
			r.progress.FinishDimension(res, err)
		}
		if err != nil {
			failed = true
			r.log.Printf("%s: %v", dj.ID, err)
			continue
		}
		if res.Outcome == scan.OutcomeOK {
			dims = append(dims, export.Dimension{Frequencies: res.Frequencies, Version: version})
		}
	}

	if err := r.export(dims); err != nil {
		r.log.Printf("export: %v", err)
		failed = true
	}
	if r.cfg.SnapshotDir != "" && len(snapDims) > 0 {
		path := filepath.Join(r.cfg.SnapshotDir, r.runID+".snap.zst")
		snap := snapshot.SnapshotV1{
			Header: snapshot.Header{
				Version:   snapshot.Version,
				RunID:     r.runID,
				CreatedAt: time.Now().Unix(),
				Save:      r.cfg.Path,
			},
			Zone:       zone,
			Proto:      r.job.Proto.String(),
			Dimensions: snapDims,
		}
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			r.log.Printf("write snapshot: %v", err)
		} else {
			r.log.Printf("snapshot: %s", path)
			r.upload.Add(path)
		}
	}

	status := "ok"
	if failed {
		status = "failed"
	}
	r.index.FinishRun(r.runID, status)
	if r.progress != nil {
		r.progress.Finish(status)
	}
	if failed {
		return 1
	}
	return 0
}

// scanDimension scans one dimension and detects its version. Terminal-empty outcomes are
// logged and returned without error.
func (r *runner) scanDimension(dj config.DimensionJob) (scan.DimensionResult, scan.RegionVersion, error) {
	res := scan.DimensionResult{Dimension: dj.ID, Frequencies: scan.EmptyFrequencies(dj.ID)}
	r.log.Printf("starting to scan dimension %s at %s", dj.ID, dj.Dir)

	folder, err := anvil.OpenFolder(dj.Dir)
	if err != nil {
		res.Outcome = scan.OutcomeNoRegions
		if r.job.Zone != nil {
			res.RegionsTried = r.job.Zone.Size()
		}
		if r.progress != nil {
			r.progress.StartDimension(dj.ID, res.RegionsTried)
		}
		r.log.Printf("%s: no regions were found (%v)", dj.ID, err)
		return res, scan.Pre118, nil
	}

	total := 0
	if r.job.Zone != nil {
		total = r.job.Zone.Size()
	} else if coords, err := folder.Regions(); err == nil {
		total = len(coords)
	}
	if r.progress != nil {
		r.progress.StartDimension(dj.ID, total)
	}

	opts := scan.Options{
		Dimension: dj.ID,
		Zone:      r.job.Zone,
		Threads:   r.cfg.Threads,
		Proto:     r.job.Proto,
		OnRegion:  r.onRegion,
	}
	if r.cache != nil {
		opts.Cache = r.cache
	}
	res, err = scan.ScanZone(folder, opts)
	if err != nil {
		return res, scan.Pre118, fmt.Errorf("scan: %w", err)
	}

	switch res.Outcome {
	case scan.OutcomeNoRegions:
		r.log.Printf("%s: no regions were found", dj.ID)
		return res, scan.Pre118, nil
	case scan.OutcomeNoChunks:
		r.log.Printf("%s: %d regions found but no chunk was counted; check the zone and -proto", dj.ID, res.RegionsFound)
		return res, scan.Pre118, nil
	}

	version, err := scan.DetectVersion(folder, r.job.Zone)
	if err != nil {
		return res, version, fmt.Errorf("version detection: %w", err)
	}
	r.summarize(res, version)
	return res, version, nil
}

func (r *runner) onRegion(ev scan.RegionEvent) {
	r.index.RecordRegion(r.runID, ev)
	if r.events != nil {
		if err := r.events.WriteRegion(ev); err != nil {
			r.log.Printf("event log: %v", err)
		}
	}
	if r.progress != nil {
		r.progress.Region(ev)
	}
	switch {
	case !ev.Found:
		r.log.Printf("region (%d,%d) not found", ev.X, ev.Z)
	case ev.Cached:
		r.log.Printf("region (%d,%d): %d chunks (cached)", ev.X, ev.Z, ev.ChunksCounted)
	default:
		r.log.Printf("region (%d,%d): %d chunks in %s", ev.X, ev.Z, ev.ChunksCounted, ev.Elapsed.Round(time.Millisecond))
	}
}

func (r *runner) summarize(res scan.DimensionResult, version scan.RegionVersion) {
	f := res.Frequencies
	secs := res.Elapsed.Seconds()
	r.log.Printf("%s: tried to scan %d regions, succeeded in scanning %d (%d from cache); version %s",
		res.Dimension, res.RegionsTried, res.RegionsFound, res.RegionsCached, version)
	if res.RegionsTried > 0 {
		coverage := float64(f.ChunksCounted) / float64(res.RegionsTried*scan.ChunkSlots) * 100
		r.log.Printf("%s: nonempty chunks counted %s, around %.2f%% of the zone", res.Dimension, humanize.Comma(int64(f.ChunksCounted)), coverage)
	}
	if f.ProtochunksSeen > 0 {
		r.log.Printf("%s: protochunks counted %s", res.Dimension, humanize.Comma(int64(f.ProtochunksSeen)))
	}
	r.log.Printf("%s: area on each layer %s, blocks counted %s", res.Dimension, humanize.Comma(int64(f.Area)), humanize.Comma(int64(f.BlocksCounted)))
	perRegion, perChunks := 0.0, 0.0
	if res.RegionsFound > 0 {
		perRegion = secs / float64(res.RegionsFound)
	}
	if f.ChunksCounted > 0 {
		perChunks = secs / float64(f.ChunksCounted) * scan.ChunkSlots
	}
	r.log.Printf("%s: elapsed %.2fs for %d regions, %.2fs per scanned region, %.2fs per 1024 scanned chunks",
		res.Dimension, secs, res.RegionsTried, perRegion, perChunks)
	if r.ores {
		for _, line := range oreReport(f) {
			r.log.Printf("%s: %s", res.Dimension, line)
		}
	}
}

func (r *runner) export(dims []export.Dimension) error {
	var (
		content string
		err     error
	)
	switch r.cfg.Format {
	case config.FormatCSV:
		content, err = r.exporter.CSV(dims)
	default:
		content, err = r.exporter.JER(dims)
	}
	if err != nil {
		return err
	}
	if err := artifact.Write(r.cfg.Output, content); err != nil {
		return err
	}
	r.log.Printf("wrote %s (%s, %d dimensions)", r.cfg.Output, humanize.Bytes(uint64(len(content))), len(dims))
	r.upload.Add(r.cfg.Output)
	return nil
}
