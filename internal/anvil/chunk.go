package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"regionscan.dev/internal/scan"
)

// Sector compression schemes.
const (
	CompressionGzip = 1
	CompressionZlib = 2
	CompressionNone = 3
)

const (
	// First data version with the 1.18 top-level chunk layout (21w43a).
	dataVersionFlattenedLayout = 2844
	// First data version whose block state longs do not span entries (20w17a).
	dataVersionPaddedStates = 2529

	sectionVolume = 16 * 16 * 16
)

var (
	ErrEmptySector = errors.New("anvil: empty sector")
	ErrCompression = errors.New("anvil: unknown compression")
	ErrStates      = errors.New("anvil: malformed block states")
)

type blockState struct {
	Name string `nbt:"Name"`
}

type palettedStates struct {
	Palette []blockState `nbt:"palette"`
	Data    []int64      `nbt:"data"`
}

type section struct {
	Y           int8           `nbt:"Y"`
	BlockStates palettedStates `nbt:"block_states"`
}

type legacySection struct {
	Y           int8         `nbt:"Y"`
	Palette     []blockState `nbt:"Palette"`
	BlockStates []int64      `nbt:"BlockStates"`
}

type legacyLevel struct {
	Status   string          `nbt:"Status"`
	Sections []legacySection `nbt:"Sections"`
}

// rawChunk covers both layouts; only one of Sections and Level.Sections is populated.
type rawChunk struct {
	DataVersion int32       `nbt:"DataVersion"`
	Status      string      `nbt:"Status"`
	Sections    []section   `nbt:"sections"`
	Level       legacyLevel `nbt:"Level"`
}

// Chunk is a decoded column. It implements scan.Chunk.
type Chunk struct {
	status   string
	version  scan.RegionVersion
	minSec   int
	sections []*states
	minY     int
	maxY     int
}

type states struct {
	palette []string
	// nil when the section holds a single state
	index []uint16
}

func (s *states) at(i int) string {
	if s.index == nil {
		return s.palette[0]
	}
	return s.palette[s.index[i]]
}

func (c *Chunk) Status() string                { return c.status }
func (c *Chunk) Version() scan.RegionVersion   { return c.version }
func (c *Chunk) VerticalRange() (min, max int) { return c.minY, c.maxY }

func (c *Chunk) Block(x, y, z int) (string, bool) {
	i := (y >> 4) - c.minSec
	if i < 0 || i >= len(c.sections) || c.sections[i] == nil {
		return "", false
	}
	return c.sections[i].at(((y&15)*16+z)*16 + x), true
}

// DecodeSector decodes one region sector payload: a compression byte followed by the
// compressed NBT compound.
func DecodeSector(data []byte) (*Chunk, error) {
	if len(data) == 0 {
		return nil, ErrEmptySector
	}
	var r io.Reader
	body := bytes.NewReader(data[1:])
	switch data[0] {
	case CompressionGzip:
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionZlib:
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionNone:
		r = body
	default:
		return nil, fmt.Errorf("%w: %d", ErrCompression, data[0])
	}

	var raw rawChunk
	if _, err := nbt.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode nbt: %w", err)
	}
	return fromRaw(&raw)
}

func fromRaw(raw *rawChunk) (*Chunk, error) {
	legacy := raw.Level.Status != "" || len(raw.Level.Sections) > 0 ||
		(len(raw.Sections) == 0 && raw.DataVersion < dataVersionFlattenedLayout)

	c := &Chunk{}
	byY := map[int]*states{}
	if legacy {
		c.status = raw.Level.Status
		c.version = scan.Pre118
		spanning := raw.DataVersion < dataVersionPaddedStates
		for _, s := range raw.Level.Sections {
			st, err := decodeStates(s.Palette, s.BlockStates, spanning)
			if err != nil {
				return nil, fmt.Errorf("section %d: %w", s.Y, err)
			}
			if st != nil {
				byY[int(s.Y)] = st
			}
		}
	} else {
		c.status = raw.Status
		c.version = scan.AtLeast118
		for _, s := range raw.Sections {
			st, err := decodeStates(s.BlockStates.Palette, s.BlockStates.Data, false)
			if err != nil {
				return nil, fmt.Errorf("section %d: %w", s.Y, err)
			}
			if st != nil {
				byY[int(s.Y)] = st
			}
		}
	}

	if len(byY) == 0 {
		c.minY, c.maxY = defaultRange(c.version)
		return c, nil
	}
	lo, hi := 0, 0
	first := true
	for y := range byY {
		if first || y < lo {
			lo = y
		}
		if first || y > hi {
			hi = y
		}
		first = false
	}
	c.minSec = lo
	c.sections = make([]*states, hi-lo+1)
	for y, st := range byY {
		c.sections[y-lo] = st
	}
	c.minY, c.maxY = lo*16, hi*16+15
	return c, nil
}

func defaultRange(v scan.RegionVersion) (int, int) {
	if v == scan.AtLeast118 {
		return -64, 319
	}
	return 0, 255
}

// decodeStates returns nil for sections without a palette.
func decodeStates(palette []blockState, data []int64, spanning bool) (*states, error) {
	if len(palette) == 0 {
		return nil, nil
	}
	st := &states{palette: make([]string, len(palette))}
	for i, b := range palette {
		st.palette[i] = b.Name
	}
	if len(palette) == 1 {
		return st, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %d palette entries without data", ErrStates, len(palette))
	}
	idx := make([]uint16, sectionVolume)
	if err := unpack(data, bitsPerEntry(len(palette)), spanning, idx); err != nil {
		return nil, err
	}
	for _, v := range idx {
		if int(v) >= len(palette) {
			return nil, fmt.Errorf("%w: index %d outside palette of %d", ErrStates, v, len(palette))
		}
	}
	st.index = idx
	return st, nil
}
