// Package snapshot stores the finished per-dimension tables of a scan run so they can be
// re-exported later without rescanning.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"regionscan.dev/internal/scan"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	RunID     string `json:"run_id"`
	CreatedAt int64  `json:"created_at_unix"`
	Save      string `json:"save"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Zone  string `json:"zone"`
	Proto string `json:"proto"`

	Dimensions []DimensionV1 `json:"dimensions"`
}

type DimensionV1 struct {
	ID           string `json:"id"`
	Version      int    `json:"version"`
	Outcome      string `json:"outcome"`
	RegionsTried int    `json:"regions_tried"`
	RegionsFound int    `json:"regions_found"`

	BlocksCounted   uint64 `json:"blocks_counted"`
	ChunksCounted   uint64 `json:"chunks_counted"`
	ProtochunksSeen uint64 `json:"protochunks_seen"`
	Area            uint64 `json:"area"`

	Frequencies map[string]map[int]float64 `json:"frequencies"`
}

func FromResult(res scan.DimensionResult, version scan.RegionVersion) DimensionV1 {
	f := res.Frequencies
	return DimensionV1{
		ID:              res.Dimension,
		Version:         int(version),
		Outcome:         res.Outcome.String(),
		RegionsTried:    res.RegionsTried,
		RegionsFound:    res.RegionsFound,
		BlocksCounted:   f.BlocksCounted,
		ChunksCounted:   f.ChunksCounted,
		ProtochunksSeen: f.ProtochunksSeen,
		Area:            f.Area,
		Frequencies:     copyFrequencies(f.Frequencies),
	}
}

func (d DimensionV1) RegionVersion() scan.RegionVersion {
	return scan.RegionVersion(d.Version)
}

func (d DimensionV1) Table() scan.BlockFrequencies {
	f := scan.EmptyFrequencies(d.ID)
	f.BlocksCounted = d.BlocksCounted
	f.ChunksCounted = d.ChunksCounted
	f.ProtochunksSeen = d.ProtochunksSeen
	f.Area = d.Area
	f.Frequencies = copyFrequencies(d.Frequencies)
	return f
}

func copyFrequencies(m map[string]map[int]float64) map[string]map[int]float64 {
	out := make(map[string]map[int]float64, len(m))
	for name, levels := range m {
		cp := make(map[int]float64, len(levels))
		for y, v := range levels {
			cp[y] = v
		}
		out[name] = cp
	}
	return out
}

// WriteSnapshot writes a json header line followed by the gob-encoded snapshot, zstd
// compressed.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The header is repeated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading json line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
