package scan

// ChunkStatus classifies a chunk's generation status tag.
type ChunkStatus int

const (
	StatusProto ChunkStatus = iota
	StatusFull
	StatusLegacyFull
)

func ClassifyStatus(status string) ChunkStatus {
	switch status {
	case "minecraft:full":
		return StatusFull
	case "full":
		return StatusLegacyFull
	default:
		return StatusProto
	}
}

func (s ChunkStatus) IsProto() bool { return s == StatusProto }

// Admits reports whether a chunk with status s is counted under p.
func (p ProtoOption) Admits(s ChunkStatus) bool {
	switch p {
	case ProtoSkip:
		return !s.IsProto()
	case ProtoOnly:
		return s.IsProto()
	default:
		return true
	}
}

// CountChunk adds every (level, z, x) of c into counts. It returns false when the proto
// policy excludes the chunk, in which case counts is untouched.
func CountChunk(c Chunk, proto ProtoOption, counts *BlockCounts) bool {
	status := ClassifyStatus(c.Status())
	if !proto.Admits(status) {
		return false
	}
	minY, maxY := c.VerticalRange()
	for y := minY; y <= maxY; y++ {
		for z := 0; z < ChunkSide; z++ {
			for x := 0; x < ChunkSide; x++ {
				if name, ok := c.Block(x, y, z); ok {
					counts.add(name, y)
				}
				counts.BlocksCounted++
			}
		}
	}
	counts.ChunksCounted++
	if status.IsProto() {
		counts.ProtochunksSeen++
	}
	return true
}
