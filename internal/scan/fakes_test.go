package scan

import (
	"fmt"
	"sync"
)

type fakeChunk struct {
	status  string
	minY    int
	maxY    int
	version RegionVersion
	// layers fills every column of a level with one block.
	layers map[int]string
}

func (c *fakeChunk) Block(x, y, z int) (string, bool) {
	name, ok := c.layers[y]
	return name, ok
}
func (c *fakeChunk) Status() string            { return c.status }
func (c *fakeChunk) VerticalRange() (int, int) { return c.minY, c.maxY }
func (c *fakeChunk) Version() RegionVersion    { return c.version }

func fullChunk(layers map[int]string) *fakeChunk {
	return &fakeChunk{status: "minecraft:full", minY: 0, maxY: 15, layers: layers}
}

type fakeRegion struct {
	chunks map[[2]int]*fakeChunk
	stamp  string
	closed *int
	mu     *sync.Mutex
}

func (r *fakeRegion) Chunk(x, z int) (Chunk, bool) {
	c, ok := r.chunks[[2]int{x, z}]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *fakeRegion) Close() error {
	if r.mu != nil {
		r.mu.Lock()
		*r.closed++
		r.mu.Unlock()
	}
	return nil
}

type stampedRegion struct {
	*fakeRegion
}

func (r stampedRegion) Stamp() string { return r.stamp }

type fakeSource struct {
	regions map[RegionCoord]map[[2]int]*fakeChunk
	stamps  map[RegionCoord]string

	mu     sync.Mutex
	opened int
	closed int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		regions: map[RegionCoord]map[[2]int]*fakeChunk{},
		stamps:  map[RegionCoord]string{},
	}
}

func (s *fakeSource) put(rx, rz, cx, cz int, c *fakeChunk) {
	rc := RegionCoord{X: rx, Z: rz}
	if s.regions[rc] == nil {
		s.regions[rc] = map[[2]int]*fakeChunk{}
	}
	s.regions[rc][[2]int{cx, cz}] = c
}

func (s *fakeSource) Region(x, z int) (Region, bool) {
	chunks, ok := s.regions[RegionCoord{X: x, Z: z}]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	r := &fakeRegion{chunks: chunks, closed: &s.closed, mu: &s.mu}
	if st, ok := s.stamps[RegionCoord{X: x, Z: z}]; ok {
		r.stamp = st
		return stampedRegion{r}, true
	}
	return r, true
}

func (s *fakeSource) Regions() ([]RegionCoord, error) {
	out := make([]RegionCoord, 0, len(s.regions))
	for rc := range s.regions {
		out = append(out, rc)
	}
	return out, nil
}

type brokenSource struct{}

func (brokenSource) Region(x, z int) (Region, bool)  { return nil, false }
func (brokenSource) Regions() ([]RegionCoord, error) { return nil, fmt.Errorf("boom") }

type memCache struct {
	mu   sync.Mutex
	m    map[CacheKey]BlockFrequencies
	gets int
	puts int
}

func newMemCache() *memCache { return &memCache{m: map[CacheKey]BlockFrequencies{}} }

func (c *memCache) Get(key CacheKey) (BlockFrequencies, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	f, ok := c.m[key]
	if !ok {
		return BlockFrequencies{}, false
	}
	return cloneFrequencies(f), true
}

func (c *memCache) Put(key CacheKey, f BlockFrequencies) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.m[key] = cloneFrequencies(f)
	return nil
}

func cloneFrequencies(f BlockFrequencies) BlockFrequencies {
	out := f
	out.Frequencies = make(map[string]map[int]float64, len(f.Frequencies))
	for name, levels := range f.Frequencies {
		cp := make(map[int]float64, len(levels))
		for y, v := range levels {
			cp[y] = v
		}
		out.Frequencies[name] = cp
	}
	return out
}
