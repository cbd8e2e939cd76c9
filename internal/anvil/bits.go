package anvil

import (
	"fmt"
	"math/bits"
)

// bitsPerEntry is the index width for a block state palette of size n.
func bitsPerEntry(n int) int {
	b := bits.Len(uint(n - 1))
	if b < 4 {
		return 4
	}
	return b
}

// unpack reads len(out) packed indices of width w from data. Padded layouts keep every
// entry inside one long; spanning layouts let an entry continue into the next long.
func unpack(data []int64, w int, spanning bool, out []uint16) error {
	mask := uint64(1)<<uint(w) - 1
	if !spanning {
		perLong := 64 / w
		need := (len(out) + perLong - 1) / perLong
		if len(data) < need {
			return fmt.Errorf("%w: %d longs, need %d", ErrStates, len(data), need)
		}
		for i := range out {
			shift := uint(i%perLong) * uint(w)
			out[i] = uint16((uint64(data[i/perLong]) >> shift) & mask)
		}
		return nil
	}

	need := (len(out)*w + 63) / 64
	if len(data) < need {
		return fmt.Errorf("%w: %d longs, need %d", ErrStates, len(data), need)
	}
	for i := range out {
		bit := i * w
		word, off := bit/64, uint(bit%64)
		v := uint64(data[word]) >> off
		if int(off)+w > 64 {
			v |= uint64(data[word+1]) << (64 - off)
		}
		out[i] = uint16(v & mask)
	}
	return nil
}
