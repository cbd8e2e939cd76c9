package snapshot

import (
	"path/filepath"
	"testing"

	"regionscan.dev/internal/scan"
)

func TestWriteReadSnapshot(t *testing.T) {
	f := scan.EmptyFrequencies(scan.DimensionNether)
	f.Area = 512
	f.ChunksCounted = 2
	f.BlocksCounted = 2 * 256 * 128
	f.Frequencies["minecraft:ancient_debris"] = map[int]float64{8: 0.01, 15: 0.02}
	res := scan.DimensionResult{
		Dimension:    scan.DimensionNether,
		Frequencies:  f,
		RegionsTried: 4,
		RegionsFound: 1,
		Outcome:      scan.OutcomeOK,
	}

	path := filepath.Join(t.TempDir(), "snapshots", "run.snap.zst")
	in := SnapshotV1{
		Header:     Header{Version: Version, RunID: "run-1", CreatedAt: 1700000000, Save: "/saves/w"},
		Zone:       "0,2,0,2",
		Proto:      scan.ProtoSkip.String(),
		Dimensions: []DimensionV1{FromResult(res, scan.AtLeast118)},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil || h.RunID != "run-1" || h.Version != Version {
		t.Fatalf("ReadHeader: %+v %v", h, err)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(out.Dimensions) != 1 {
		t.Fatalf("dimensions: %d", len(out.Dimensions))
	}
	d := out.Dimensions[0]
	if d.RegionVersion() != scan.AtLeast118 || d.Outcome != "ok" || d.RegionsFound != 1 {
		t.Fatalf("dimension: %+v", d)
	}
	table := d.Table()
	if table.Area != 512 || table.Frequencies["minecraft:ancient_debris"][15] != 0.02 {
		t.Fatalf("table: %+v", table)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
