package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"regionscan.dev/internal/persistence/cache"
	"regionscan.dev/internal/scan"
)

func cacheCmd(args []string) {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	dir := fs.String("dir", "data/cache", "region cache directory")
	dim := fs.String("dim", "", "dimension id (purge: empty purges every dimension)")
	proto := fs.String("proto", "skip", "protochunk option of the entry (get)")
	x := fs.Int("x", 0, "region x (get)")
	z := fs.Int("z", 0, "region z (get)")
	_ = fs.Parse(args)

	op := "stats"
	if fs.NArg() > 0 {
		op = strings.TrimSpace(fs.Arg(0))
	}

	c, err := cache.Open(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer c.Close()

	switch op {
	case "stats":
		st, err := c.Stats()
		if err != nil {
			fmt.Fprintln(os.Stderr, "stats:", err)
			os.Exit(1)
		}
		for _, d := range st.Dimensions {
			fmt.Printf("%-28s entries=%-6d size=%s\n", d.Dimension, d.Entries, humanize.Bytes(uint64(d.Bytes)))
		}
		fmt.Printf("total entries=%d size=%s\n", st.Entries, humanize.Bytes(uint64(st.Bytes)))

	case "purge":
		n, err := c.Purge(strings.TrimSpace(*dim))
		if err != nil {
			fmt.Fprintln(os.Stderr, "purge:", err)
			os.Exit(1)
		}
		fmt.Printf("purged %d entries\n", n)

	case "get":
		p, err := scan.ParseProtoOption(*proto)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		d := strings.TrimSpace(*dim)
		if d == "" {
			d = scan.DimensionOverworld
		}
		stamp, table, err := c.Lookup(d, p, *x, *z)
		if err != nil {
			fmt.Fprintln(os.Stderr, "lookup:", err)
			os.Exit(1)
		}
		names := make([]string, 0, len(table.Frequencies))
		for name := range table.Frequencies {
			names = append(names, name)
		}
		sort.Strings(names)
		printJSON(struct {
			Stamp  string   `json:"stamp"`
			Chunks uint64   `json:"chunks"`
			Blocks uint64   `json:"blocks"`
			Area   uint64   `json:"area"`
			Names  []string `json:"names"`
		}{stamp, table.ChunksCounted, table.BlocksCounted, table.Area, names})

	default:
		fmt.Fprintf(os.Stderr, "unknown cache op %q (stats, purge, get)\n", op)
		os.Exit(2)
	}
}
