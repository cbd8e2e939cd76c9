package scan

import "errors"

var ErrNoDecodableChunk = errors.New("no decodable chunk in zone")

// DetectVersion returns the version of the first chunk that decodes, visiting regions in
// zone order (or sorted coordinate order for a nil zone) and slots in on-disk order.
func DetectVersion(src Source, zone *Zone) (RegionVersion, error) {
	coords, err := coordsFor(src, zone)
	if err != nil {
		return Pre118, err
	}
	for _, rc := range coords {
		r, ok := src.Region(rc.X, rc.Z)
		if !ok {
			continue
		}
		v, found := firstVersion(r)
		_ = r.Close()
		if found {
			return v, nil
		}
	}
	return Pre118, ErrNoDecodableChunk
}

func firstVersion(r Region) (RegionVersion, bool) {
	for z := 0; z < RegionSide; z++ {
		for x := 0; x < RegionSide; x++ {
			if c, ok := r.Chunk(x, z); ok {
				return c.Version(), true
			}
		}
	}
	return Pre118, false
}
