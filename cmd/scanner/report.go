package main

import (
	"fmt"
	"sort"
	"strings"

	"regionscan.dev/internal/scan"
)

// oreReport formats the average share of every block whose name contains "ore", both as a
// percentage of a layer and as a count per chunk column of 256 blocks.
func oreReport(f scan.BlockFrequencies) []string {
	var names []string
	width := 0
	for name := range f.Frequencies {
		if !strings.Contains(name, "ore") {
			continue
		}
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)
	width = (width + 4) / 5 * 5

	out := make([]string, 0, len(names))
	for _, name := range names {
		var total float64
		for _, v := range f.Frequencies[name] {
			total += v
		}
		avg := total / scan.ChunkColumns
		out = append(out, fmt.Sprintf("%-*s: %7.4f%% (%9.3f per chunk)", width, name, avg*100, total*scan.ChunkColumns))
	}
	return out
}
