package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"regionscan.dev/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "scan job yaml (optional; flags override its values)")
		savePath   = flag.String("path", "", "save folder of the world to scan")
		dims       = flag.String("dims", "", "comma separated dimension ids (default minecraft:overworld)")
		zone       = flag.String("zone", "", "region zone FROM_X,TO_X,FROM_Z,TO_Z, upper bounds exclusive (default: every region present)")
		threads    = flag.Int("threads", 0, "scan workers (0 = number of CPUs)")
		proto      = flag.String("proto", "", "protochunk handling: skip, include or only")
		cutoff     = flag.String("cutoff", "", "drop blocks whose rarity is below this value (empty = keep all)")
		format     = flag.String("format", "", "export format: jer or csv")
		output     = flag.String("output", "", "export path (default output/world-gen.json or .csv)")
		compress   = flag.Bool("compress", false, "zstd-compress the export (adds .zst)")
		reportOres = flag.Bool("report_ores", false, "log the average share of every ore block after each dimension")

		indexDB      = flag.String("index_db", "", "sqlite scan index path (empty to disable)")
		cacheDir     = flag.String("cache_dir", "", "region result cache directory (empty to disable)")
		eventsDir    = flag.String("events_dir", "", "region event log directory (empty to disable)")
		snapshotDir  = flag.String("snapshot_dir", "", "snapshot directory for finished tables (empty to disable)")
		progressAddr = flag.String("progress_addr", "", "loopback address for the websocket progress stream (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[scanner] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(2)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name := range set {
		switch name {
		case "path":
			cfg.Path = *savePath
		case "dims":
			cfg.Dims = strings.Split(*dims, ",")
		case "zone":
			cfg.Zone = *zone
		case "threads":
			cfg.Threads = *threads
		case "proto":
			cfg.Proto = *proto
		case "cutoff":
			if strings.TrimSpace(*cutoff) == "" {
				cfg.Cutoff = nil
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(*cutoff), 64)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -cutoff:", err)
				os.Exit(2)
			}
			cfg.Cutoff = &v
		case "format":
			cfg.Format = *format
		case "output":
			cfg.Output = *output
		case "compress":
			cfg.Compress = *compress
		case "index_db":
			cfg.IndexDB = *indexDB
		case "cache_dir":
			cfg.CacheDir = *cacheDir
		case "events_dir":
			cfg.EventsDir = *eventsDir
		case "snapshot_dir":
			cfg.SnapshotDir = *snapshotDir
		case "progress_addr":
			cfg.ProgressAddr = *progressAddr
		}
	}
	// A default output path follows the format and compression given on the command line.
	if (set["format"] || set["compress"]) && !set["output"] && isDefaultOutput(cfg.Output) {
		cfg.Output = ""
	}
	cfg.Normalize()

	job, err := cfg.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	r, err := newRunner(cfg, job, *reportOres, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	code := r.run()
	r.close()
	os.Exit(code)
}

func isDefaultOutput(p string) bool {
	p = strings.TrimSuffix(p, ".zst")
	return p == filepath.Join("output", "world-gen.json") || p == filepath.Join("output", "world-gen.csv")
}
