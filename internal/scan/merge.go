package scan

import (
	"fmt"
	"math"
)

// MergeInto folds other into main as an area-weighted average. With A = main.Area and
// B = other.Area every level becomes main*α + other*(1-α), α = A/(A+B), a side lacking a
// level or a whole block contributing 0. That equals summing raw counts and dividing once,
// so any reduction tree gives the same result up to float rounding. A block only other has
// is therefore scaled by 1-α rather than carried over unchanged.
//
// other is left untouched; main never shares level maps with it.
func MergeInto(main *BlockFrequencies, other BlockFrequencies) {
	if main.Frequencies == nil {
		main.Frequencies = map[string]map[int]float64{}
	}
	if main.Dimension == "" {
		main.Dimension = other.Dimension
	}

	alpha := mergeWeight(main.Area, other.Area)
	beta := 1 - alpha

	if alpha != 1 {
		for name, levels := range main.Frequencies {
			if _, shared := other.Frequencies[name]; shared {
				continue
			}
			scaleLevels(levels, alpha)
		}
	}
	for name, theirs := range other.Frequencies {
		ours, ok := main.Frequencies[name]
		if !ok {
			cp := make(map[int]float64, len(theirs))
			for y, v := range theirs {
				cp[y] = v * beta
			}
			main.Frequencies[name] = cp
			continue
		}
		addWeighted(ours, theirs, alpha)
	}

	main.Area += other.Area
	main.BlocksCounted += other.BlocksCounted
	main.ChunksCounted += other.ChunksCounted
	main.ProtochunksSeen += other.ProtochunksSeen
}

// mergeWeight returns α for areas a and b. Two empty operands keep main as is.
func mergeWeight(a, b uint64) float64 {
	if a+b == 0 {
		return 1
	}
	alpha := float64(a) / float64(a+b)
	checkWeight(alpha)
	return alpha
}

func checkWeight(w float64) {
	if math.IsNaN(w) || w < 0 || w > 1 {
		panic(fmt.Sprintf("scan: merge weight %v outside [0,1]", w))
	}
}

// addWeighted sets a[y] = a[y]*w + b[y]*(1-w) over the union of levels.
func addWeighted(a, b map[int]float64, w float64) {
	checkWeight(w)
	bw := 1 - w
	for y, av := range a {
		a[y] = av*w + b[y]*bw
	}
	for y, bv := range b {
		if _, ok := a[y]; ok {
			continue
		}
		a[y] = bv * bw
	}
}

func scaleLevels(levels map[int]float64, w float64) {
	for y, v := range levels {
		levels[y] = v * w
	}
}

// Merge folds parts left to right into a fresh accumulator. The parts are not modified.
func Merge(dimension string, parts ...BlockFrequencies) BlockFrequencies {
	acc := EmptyFrequencies(dimension)
	for _, p := range parts {
		MergeInto(&acc, p)
	}
	return acc
}
