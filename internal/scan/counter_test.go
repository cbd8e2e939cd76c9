package scan

import "testing"

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		in   string
		want ChunkStatus
	}{
		{"minecraft:full", StatusFull},
		{"full", StatusLegacyFull},
		{"minecraft:features", StatusProto},
		{"Full", StatusProto},
		{"", StatusProto},
	}
	for _, tc := range cases {
		if got := ClassifyStatus(tc.in); got != tc.want {
			t.Fatalf("ClassifyStatus(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestCountChunk_VisitsEveryCell(t *testing.T) {
	c := fullChunk(map[int]string{0: "minecraft:stone", 3: "minecraft:iron_ore"})
	counts := NewBlockCounts(DimensionOverworld)
	if !CountChunk(c, ProtoSkip, counts) {
		t.Fatalf("full chunk should be counted")
	}
	if counts.BlocksCounted != 16*256 {
		t.Fatalf("blocks counted: got %d want %d", counts.BlocksCounted, 16*256)
	}
	if counts.ChunksCounted != 1 {
		t.Fatalf("chunks counted: got %d want 1", counts.ChunksCounted)
	}
	if got := counts.Counts["minecraft:stone"][0]; got != 256 {
		t.Fatalf("stone@0: got %d want 256", got)
	}
	if got := counts.Counts["minecraft:iron_ore"][3]; got != 256 {
		t.Fatalf("iron@3: got %d want 256", got)
	}
	if len(counts.Counts) != 2 {
		t.Fatalf("empty cells must not create entries: %v", counts.Counts)
	}
}

func TestCountChunk_NegativeLevels(t *testing.T) {
	c := &fakeChunk{status: "minecraft:full", minY: -64, maxY: -49, layers: map[int]string{-60: "minecraft:deepslate"}}
	counts := NewBlockCounts(DimensionOverworld)
	CountChunk(c, ProtoSkip, counts)
	if got := counts.Counts["minecraft:deepslate"][-60]; got != 256 {
		t.Fatalf("deepslate@-60: got %d want 256", got)
	}
}

func TestCountRegion_ProtoPolicy(t *testing.T) {
	region := &fakeRegion{chunks: map[[2]int]*fakeChunk{
		{0, 0}: fullChunk(map[int]string{0: "minecraft:stone"}),
		{1, 0}: {status: "minecraft:noise", minY: 0, maxY: 15, layers: map[int]string{0: "minecraft:dirt"}},
	}}

	skip := CountRegion(region, ProtoSkip, DimensionOverworld)
	if skip.ChunksCounted != 1 || skip.ProtochunksSeen != 0 {
		t.Fatalf("skip: chunks=%d proto=%d", skip.ChunksCounted, skip.ProtochunksSeen)
	}
	if _, ok := skip.Counts["minecraft:dirt"]; ok {
		t.Fatalf("skip: protochunk blocks leaked into counts")
	}
	if skip.BlocksCounted != 16*256 {
		t.Fatalf("skip: blocks counted %d", skip.BlocksCounted)
	}

	incl := CountRegion(region, ProtoInclude, DimensionOverworld)
	if incl.ChunksCounted != 2 || incl.ProtochunksSeen != 1 {
		t.Fatalf("include: chunks=%d proto=%d", incl.ChunksCounted, incl.ProtochunksSeen)
	}
	if incl.Counts["minecraft:dirt"][0] != 256 || incl.Counts["minecraft:stone"][0] != 256 {
		t.Fatalf("include: counts %v", incl.Counts)
	}

	only := CountRegion(region, ProtoOnly, DimensionOverworld)
	if only.ChunksCounted != 1 {
		t.Fatalf("only: chunks=%d", only.ChunksCounted)
	}
	if _, ok := only.Counts["minecraft:stone"]; ok {
		t.Fatalf("only: full chunk blocks leaked into counts")
	}
}

func TestNormalize_DividesByArea(t *testing.T) {
	counts := NewBlockCounts(DimensionOverworld)
	counts.Counts["minecraft:stone"] = map[int]uint64{0: 4096}
	counts.ChunksCounted = 1

	f := Normalize(counts)
	if f.Area != 256 {
		t.Fatalf("area: got %d want 256", f.Area)
	}
	if got := f.Frequencies["minecraft:stone"][0]; got != 16.0 {
		t.Fatalf("stone@0: got %v want 16", got)
	}
}

func TestNormalize_ExactForCounts(t *testing.T) {
	counts := NewBlockCounts(DimensionOverworld)
	counts.ChunksCounted = 7
	counts.Counts["minecraft:coal_ore"] = map[int]uint64{-3: 1, 12: 999, 40: 1792}
	f := Normalize(counts)
	area := float64(256 * 7)
	for y, n := range counts.Counts["minecraft:coal_ore"] {
		if f.Frequencies["minecraft:coal_ore"][y] != float64(n)/area {
			t.Fatalf("level %d: got %v want %v", y, f.Frequencies["minecraft:coal_ore"][y], float64(n)/area)
		}
	}
}

func TestNormalize_ZeroChunks(t *testing.T) {
	f := Normalize(NewBlockCounts(DimensionNether))
	if f.Area != 0 || len(f.Frequencies) != 0 || !f.IsEmpty() {
		t.Fatalf("zero chunks should give empty frequencies: %+v", f)
	}
	if f.Dimension != DimensionNether {
		t.Fatalf("dimension lost: %q", f.Dimension)
	}
}

// A chunk reports one block per (x, y, z), so a real region cannot put 16 stone blocks per
// column on a single level; the 16.0-at-level-0 arithmetic is covered by
// TestNormalize_DividesByArea. Here the 16 stone levels each come out at 1.0.
func TestRegionFrequencies_EndToEnd(t *testing.T) {
	layers := map[int]string{}
	for y := 0; y < 16; y++ {
		layers[y] = "minecraft:stone"
	}
	region := &fakeRegion{chunks: map[[2]int]*fakeChunk{{5, 9}: fullChunk(layers)}}

	f := RegionFrequencies(region, ProtoSkip, DimensionOverworld)
	if f.ChunksCounted != 1 || f.Area != 256 {
		t.Fatalf("chunks=%d area=%d", f.ChunksCounted, f.Area)
	}
	for y := 0; y < 16; y++ {
		if got := f.Frequencies["minecraft:stone"][y]; got != 1.0 {
			t.Fatalf("stone@%d: got %v want 1", y, got)
		}
	}

	merged := Merge(DimensionOverworld, f, RegionFrequencies(region, ProtoSkip, DimensionOverworld))
	if got := merged.Frequencies["minecraft:stone"][0]; got != 1.0 {
		t.Fatalf("equal-area merge of equal distributions changed value: %v", got)
	}
	if merged.Area != 512 || merged.ChunksCounted != 2 {
		t.Fatalf("merged area=%d chunks=%d", merged.Area, merged.ChunksCounted)
	}
}

func TestParseProtoOption(t *testing.T) {
	for in, want := range map[string]ProtoOption{"": ProtoSkip, "skip": ProtoSkip, "Include": ProtoInclude, "only": ProtoOnly} {
		got, err := ParseProtoOption(in)
		if err != nil || got != want {
			t.Fatalf("ParseProtoOption(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseProtoOption("sometimes"); err == nil {
		t.Fatalf("expected error for unknown option")
	}
}
