// Package anvil reads Java edition region folders through go-mc and exposes them as a
// scan.Source.
package anvil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Tnze/go-mc/save/region"

	"regionscan.dev/internal/scan"
)

// Folder is a directory of r.<x>.<z>.mca files. It is read-only and safe for concurrent use.
type Folder struct {
	dir string
}

func OpenFolder(dir string) (*Folder, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", dir)
	}
	return &Folder{dir: dir}, nil
}

func (f *Folder) Dir() string { return f.dir }

func RegionFileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

func parseRegionFileName(name string) (scan.RegionCoord, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return scan.RegionCoord{}, false
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return scan.RegionCoord{}, false
	}
	z, err := strconv.Atoi(parts[2])
	if err != nil {
		return scan.RegionCoord{}, false
	}
	return scan.RegionCoord{X: x, Z: z}, true
}

func (f *Folder) Regions() ([]scan.RegionCoord, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []scan.RegionCoord
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if rc, ok := parseRegionFileName(e.Name()); ok {
			out = append(out, rc)
		}
	}
	return out, nil
}

// Region opens r.x.z.mca. Missing, empty or truncated files report false.
func (f *Folder) Region(x, z int) (scan.Region, bool) {
	path := filepath.Join(f.dir, RegionFileName(x, z))
	fh, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	fi, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, false
	}
	r, err := region.Load(fh)
	if err != nil {
		_ = fh.Close()
		return nil, false
	}
	return &regionFile{r: r, stamp: fmt.Sprintf("%d-%d", fi.Size(), fi.ModTime().UnixNano())}, true
}

type regionFile struct {
	r     *region.Region
	stamp string
}

func (h *regionFile) Chunk(x, z int) (scan.Chunk, bool) {
	if !h.r.ExistSector(x, z) {
		return nil, false
	}
	data, err := h.r.ReadSector(x, z)
	if err != nil {
		return nil, false
	}
	c, err := DecodeSector(data)
	if err != nil {
		return nil, false
	}
	return c, true
}

func (h *regionFile) Stamp() string { return h.stamp }

func (h *regionFile) Close() error { return h.r.Close() }
