package scan

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrBadZone = errors.New("invalid zone")

// Zone is a rectangle of region coordinates, upper bounds exclusive.
type Zone struct {
	FromX, ToX int
	FromZ, ToZ int
}

func NewZone(fromX, toX, fromZ, toZ int) (*Zone, error) {
	if toX <= fromX {
		return nil, fmt.Errorf("%w: to_x (%d) must be greater than from_x (%d)", ErrBadZone, toX, fromX)
	}
	if toZ <= fromZ {
		return nil, fmt.Errorf("%w: to_z (%d) must be greater than from_z (%d)", ErrBadZone, toZ, fromZ)
	}
	return &Zone{FromX: fromX, ToX: toX, FromZ: fromZ, ToZ: toZ}, nil
}

// ParseZone accepts "FROM_X,TO_X,FROM_Z,TO_Z", separated by commas or spaces.
func ParseZone(s string) (*Zone, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: expected 4 values, got %d", ErrBadZone, len(fields))
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadZone, f, err)
		}
		v[i] = n
	}
	return NewZone(v[0], v[1], v[2], v[3])
}

func (z *Zone) Size() int {
	return (z.ToX - z.FromX) * (z.ToZ - z.FromZ)
}

// Coords lists the zone x-major, z-minor.
func (z *Zone) Coords() []RegionCoord {
	out := make([]RegionCoord, 0, z.Size())
	for x := z.FromX; x < z.ToX; x++ {
		for zz := z.FromZ; zz < z.ToZ; zz++ {
			out = append(out, RegionCoord{X: x, Z: zz})
		}
	}
	return out
}

func (z *Zone) String() string {
	if z == nil {
		return "all"
	}
	return fmt.Sprintf("%d,%d,%d,%d", z.FromX, z.ToX, z.FromZ, z.ToZ)
}

// coordsFor resolves a possibly nil zone against the source.
func coordsFor(src Source, zone *Zone) ([]RegionCoord, error) {
	if zone != nil {
		return zone.Coords(), nil
	}
	coords, err := src.Regions()
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	sorted := append([]RegionCoord(nil), coords...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Z < sorted[j].Z
	})
	return sorted, nil
}
