package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"regionscan.dev/internal/export"
	"regionscan.dev/internal/persistence/artifact"
	persistlog "regionscan.dev/internal/persistence/log"
	"regionscan.dev/internal/persistence/snapshot"
	"regionscan.dev/internal/scan"
)

func catCmd(args []string) {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin cat FILE")
		os.Exit(2)
	}
	s, err := artifact.Read(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	fmt.Print(s)
}

// exportCmd re-exports the tables of a snapshot, optionally with a different cutoff or
// format, without rescanning the save.
func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	snapDir := fs.String("snapshots", "data/snapshots", "snapshot directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to the newest in -snapshots)")
	format := fs.String("format", "jer", "export format: jer or csv")
	cutoff := fs.String("cutoff", "", "rarity cutoff (empty = keep all)")
	outPath := fs.String("out", "", "output path (default stdout; .zst compresses)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = latestSnapshot(*snapDir)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the scanner with -snapshot_dir")
		os.Exit(2)
	}

	var cut *float64
	if c := strings.TrimSpace(*cutoff); c != "" {
		v, err := strconv.ParseFloat(c, 64)
		if err == nil {
			err = scan.ValidateCutoff(v)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -cutoff:", err)
			os.Exit(2)
		}
		cut = &v
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	dims := make([]export.Dimension, 0, len(snap.Dimensions))
	for _, d := range snap.Dimensions {
		table := d.Table()
		if cut != nil {
			_, _ = scan.FilterRare(&table, *cut)
		}
		dims = append(dims, export.Dimension{Frequencies: table, Version: d.RegionVersion()})
	}

	ex := export.New(log.New(os.Stderr, "[admin] ", log.LstdFlags))
	var content string
	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "jer":
		content, err = ex.JER(dims)
	case "csv":
		content, err = ex.CSV(dims)
	default:
		fmt.Fprintf(os.Stderr, "bad -format %q\n", *format)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*outPath) == "" {
		fmt.Print(content)
		return
	}
	if err := artifact.Write(*outPath, content); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "export ok: snapshot=%s run=%s dims=%d out=%s\n", filepath.Base(path), snap.Header.RunID, len(dims), *outPath)
}

// latestSnapshot returns the snapshot in dir with the newest header, or "".
func latestSnapshot(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var (
		best   string
		bestAt int64
	)
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			continue
		}
		if best == "" || h.CreatedAt > bestAt {
			best, bestAt = p, h.CreatedAt
		}
	}
	return best
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dir := fs.String("dir", "data/events", "region event log directory")
	runID := fs.String("run", "", "run id (required unless a FILE is given)")
	dim := fs.String("dim", "", "only events of this dimension")
	missing := fs.Bool("missing", false, "only regions that were not found")
	_ = fs.Parse(args)

	path := ""
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	} else if strings.TrimSpace(*runID) != "" {
		path = persistlog.RunLogPath(*dir, strings.TrimSpace(*runID))
	} else {
		fmt.Fprintln(os.Stderr, "missing -run or FILE")
		os.Exit(2)
	}

	err := persistlog.ReadEntries(path, func(e persistlog.Entry) error {
		if *dim != "" && e.Dimension != *dim {
			return nil
		}
		if *missing && e.Found {
			return nil
		}
		printJSON(e)
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
}
