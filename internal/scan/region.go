package scan

// CountRegion counts every present, decodable chunk of r. Slots are visited z-major with x
// changing fastest, matching the on-disk header layout.
func CountRegion(r Region, proto ProtoOption, dimension string) *BlockCounts {
	counts := NewBlockCounts(dimension)
	for z := 0; z < RegionSide; z++ {
		for x := 0; x < RegionSide; x++ {
			c, ok := r.Chunk(x, z)
			if !ok {
				continue
			}
			CountChunk(c, proto, counts)
		}
	}
	return counts
}

// RegionFrequencies is CountRegion followed by Normalize.
func RegionFrequencies(r Region, proto ProtoOption, dimension string) BlockFrequencies {
	return Normalize(CountRegion(r, proto, dimension))
}
