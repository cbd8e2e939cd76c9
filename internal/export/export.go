package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"regionscan.dev/internal/scan"
)

// MaxLevel is the highest raw level the JER format can carry.
const MaxLevel = 255

// Dimension is one finished, per-dimension table ready for export.
type Dimension struct {
	Frequencies scan.BlockFrequencies
	Version     scan.RegionVersion
}

// JERRecord is one entry of the JER world-gen file.
type JERRecord struct {
	Block     string `json:"block"`
	Distrib   string `json:"distrib"`
	Silktouch bool   `json:"silktouch"`
	Dim       string `json:"dim"`
}

// Exporter renders finished tables. Each clipping notice is printed once per dimension
// for the lifetime of the Exporter.
type Exporter struct {
	log    *log.Logger
	warned map[string]bool
}

func New(logger *log.Logger) *Exporter {
	return &Exporter{log: logger, warned: map[string]bool{}}
}

// ExportLevel maps a raw chunk level to the level written to the JER file.
func ExportLevel(y int, version scan.RegionVersion) int {
	return y + version.Offset()
}

// Distrib builds the "level,value;" string for one block. The second result reports
// whether observed levels fell outside the exportable span.
func Distrib(levels map[int]float64, version scan.RegionVersion) (string, bool) {
	if len(levels) == 0 {
		return "", false
	}
	depth := -version.Offset()

	minObserved, maxObserved := levelBounds(levels)
	clipped := minObserved < depth || maxObserved > MaxLevel
	top := maxObserved
	if top > MaxLevel {
		top = MaxLevel
	}

	var b strings.Builder
	for y := depth; y <= top; y++ {
		b.WriteString(strconv.Itoa(ExportLevel(y, version)))
		b.WriteByte(',')
		b.WriteString(formatFloat(levels[y]))
		b.WriteByte(';')
	}
	return b.String(), clipped
}

// Records converts dimensions into JER records, blocks sorted by name within each
// dimension.
func (e *Exporter) Records(dims []Dimension) []JERRecord {
	var out []JERRecord
	for _, d := range dims {
		dim := d.Frequencies.Dimension
		for _, name := range sortedNames(d.Frequencies.Frequencies) {
			levels := d.Frequencies.Frequencies[name]
			if len(levels) == 0 {
				continue
			}
			distrib, clipped := Distrib(levels, d.Version)
			if clipped {
				e.noticeClipped(dim, d.Version)
			}
			if distrib == "" {
				continue
			}
			out = append(out, JERRecord{Block: name, Distrib: distrib, Silktouch: false, Dim: dim})
		}
	}
	return out
}

// JER renders the pretty-printed JSON array.
func (e *Exporter) JER(dims []Dimension) (string, error) {
	recs := e.Records(dims)
	if recs == nil {
		recs = []JERRecord{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal jer: %w", err)
	}
	return string(b), nil
}

// CSV renders one row per block and integer level between the lowest and highest observed
// levels, without offset or clipping.
func (e *Exporter) CSV(dims []Dimension) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"dim", "block", "level", "freq"}); err != nil {
		return "", err
	}
	for _, d := range dims {
		dim := d.Frequencies.Dimension
		for _, name := range sortedNames(d.Frequencies.Frequencies) {
			levels := d.Frequencies.Frequencies[name]
			if len(levels) == 0 {
				continue
			}
			lo, hi := levelBounds(levels)
			for y := lo; y <= hi; y++ {
				if err := w.Write([]string{dim, name, strconv.Itoa(y), formatFloat(levels[y])}); err != nil {
					return "", err
				}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

func (e *Exporter) noticeClipped(dim string, version scan.RegionVersion) {
	if e.warned[dim] {
		return
	}
	e.warned[dim] = true
	if e.log != nil {
		e.log.Printf("export %s: levels outside [%d, %d] are not representable and were omitted", dim, -version.Offset(), MaxLevel)
	}
}

func levelBounds(levels map[int]float64) (int, int) {
	first := true
	var lo, hi int
	for y := range levels {
		if first {
			lo, hi = y, y
			first = false
			continue
		}
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return lo, hi
}

func sortedNames(m map[string]map[int]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
