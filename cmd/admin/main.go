package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"regionscan.dev/internal/persistence/indexdb"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "runs", "dims", "regions":
			indexCmd(os.Args[1], os.Args[2:])
			return
		case "cache":
			cacheCmd(os.Args[2:])
			return
		case "cat":
			catCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "watch":
			watchCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin runs|dims|regions|cache|cat|export|events|watch [flags]")
	os.Exit(2)
}

func indexCmd(q string, args []string) {
	fs := flag.NewFlagSet(q, flag.ExitOnError)
	dbPath := fs.String("db", "data/index.sqlite", "sqlite scan index path")
	runID := fs.String("run", "", "run id (dims, regions; defaults to the latest run)")
	dim := fs.String("dim", "minecraft:overworld", "dimension id (regions)")
	limit := fs.Int("limit", 20, "result limit (runs)")
	_ = fs.Parse(args)

	r, err := indexdb.OpenReader(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	if q == "runs" {
		runs, err := r.Runs(*limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, ru := range runs {
			printJSON(ru)
		}
		return
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		runs, err := r.Runs(1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest run:", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "no runs found")
			os.Exit(2)
		}
		id = runs[0].RunID
	}

	switch q {
	case "dims":
		dims, err := r.Dimensions(id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, d := range dims {
			printJSON(d)
		}
	case "regions":
		regions, err := r.Regions(id, *dim)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, g := range regions {
			printJSON(g)
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
