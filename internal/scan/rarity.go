package scan

import (
	"errors"
	"fmt"
	"math"
)

// RarityDivisor normalizes the summed per-level frequency. It is fixed regardless of the
// world height so cutoffs mean the same thing across versions.
const RarityDivisor = 255.0

var ErrBadCutoff = errors.New("rarity cutoff must be positive")

func ValidateCutoff(cutoff float64) error {
	if math.IsNaN(cutoff) || cutoff <= 0 {
		return fmt.Errorf("%w: got %v", ErrBadCutoff, cutoff)
	}
	return nil
}

// Rarity is the summed frequency of one block over all levels divided by RarityDivisor.
func Rarity(levels map[int]float64) float64 {
	var sum float64
	for _, v := range levels {
		sum += v
	}
	return sum / RarityDivisor
}

// FilterRare removes, in place, every block whose rarity is below cutoff and returns the
// removed names count.
func FilterRare(f *BlockFrequencies, cutoff float64) (int, error) {
	if err := ValidateCutoff(cutoff); err != nil {
		return 0, err
	}
	removed := 0
	for name, levels := range f.Frequencies {
		if Rarity(levels) < cutoff {
			delete(f.Frequencies, name)
			removed++
		}
	}
	return removed, nil
}
