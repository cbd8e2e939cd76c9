package scan

import (
	"errors"
	"fmt"
	"strings"
)

type BlockCounts struct {
	Counts map[string]map[int]uint64

	BlocksCounted   uint64
	ChunksCounted   uint64
	ProtochunksSeen uint64
	Dimension       string
}

func NewBlockCounts(dimension string) *BlockCounts {
	return &BlockCounts{
		Counts:    map[string]map[int]uint64{},
		Dimension: dimension,
	}
}

func (c *BlockCounts) add(name string, y int) {
	levels := c.Counts[name]
	if levels == nil {
		levels = map[int]uint64{}
		c.Counts[name] = levels
	}
	levels[y]++
}

// BlockFrequencies holds counts divided by the sampled horizontal area. Area is the weight
// used when merging.
type BlockFrequencies struct {
	Frequencies map[string]map[int]float64

	BlocksCounted   uint64
	ChunksCounted   uint64
	ProtochunksSeen uint64
	Area            uint64
	Dimension       string
}

// EmptyFrequencies is the identity element of MergeInto.
func EmptyFrequencies(dimension string) BlockFrequencies {
	return BlockFrequencies{
		Frequencies: map[string]map[int]float64{},
		Dimension:   dimension,
	}
}

func (f BlockFrequencies) IsEmpty() bool {
	return f.Area == 0 && len(f.Frequencies) == 0
}

// Normalize converts raw counts into frequencies over 256 columns per counted chunk.
func Normalize(c *BlockCounts) BlockFrequencies {
	out := EmptyFrequencies(c.Dimension)
	out.BlocksCounted = c.BlocksCounted
	out.ChunksCounted = c.ChunksCounted
	out.ProtochunksSeen = c.ProtochunksSeen
	out.Area = ChunkColumns * c.ChunksCounted
	if out.Area == 0 {
		return out
	}
	area := float64(out.Area)
	for name, levels := range c.Counts {
		fl := make(map[int]float64, len(levels))
		for y, n := range levels {
			fl[y] = float64(n) / area
		}
		out.Frequencies[name] = fl
	}
	return out
}

// RegionVersion is the vertical coordinate convention of a world.
type RegionVersion int

const (
	Pre118 RegionVersion = iota
	AtLeast118
)

// Offset is added to raw levels on export so the lowest level maps to 0.
func (v RegionVersion) Offset() int {
	if v == AtLeast118 {
		return 64
	}
	return 0
}

func (v RegionVersion) String() string {
	if v == AtLeast118 {
		return "1.18+"
	}
	return "pre-1.18"
}

// ProtoOption decides whether chunks that are not fully generated are counted.
type ProtoOption int

const (
	ProtoSkip ProtoOption = iota
	ProtoInclude
	ProtoOnly
)

var ErrBadProtoOption = errors.New("proto option must be one of skip, include, only")

func ParseProtoOption(s string) (ProtoOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return ProtoSkip, nil
	case "include":
		return ProtoInclude, nil
	case "only", "only_proto", "onlyproto":
		return ProtoOnly, nil
	}
	return ProtoSkip, fmt.Errorf("%w: %q", ErrBadProtoOption, s)
}

func (p ProtoOption) String() string {
	switch p {
	case ProtoInclude:
		return "include"
	case ProtoOnly:
		return "only"
	default:
		return "skip"
	}
}
