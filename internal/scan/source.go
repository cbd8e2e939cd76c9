package scan

// RegionCoord addresses one region file (32x32 chunks).
type RegionCoord struct {
	X int
	Z int
}

// Source resolves region coordinates to region handles. Region must be safe to call from
// several goroutines; every call returns an independent handle.
type Source interface {
	Region(x, z int) (Region, bool)
	// Regions lists every region the source can enumerate, in no particular order.
	Regions() ([]RegionCoord, error)
}

// Region is one opened region. x and z are region-local chunk coordinates in [0,32).
// A chunk that is absent or fails to decode is reported as (nil, false).
type Region interface {
	Chunk(x, z int) (Chunk, bool)
	Close() error
}

// Chunk is a decoded 16x16 column.
type Chunk interface {
	// Block returns the block name at local x,z in [0,16) and absolute y.
	// ok is false for "no block".
	Block(x, y, z int) (name string, ok bool)
	Status() string
	// VerticalRange is inclusive.
	VerticalRange() (min, max int)
	Version() RegionVersion
}

// Stamper is implemented by regions that can identify their on-disk content.
type Stamper interface {
	Stamp() string
}

const (
	RegionSide   = 32
	ChunkSide    = 16
	ChunkSlots   = RegionSide * RegionSide
	ChunkColumns = ChunkSide * ChunkSide
)
