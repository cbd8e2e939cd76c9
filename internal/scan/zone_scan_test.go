package scan

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func populatedSource() *fakeSource {
	src := newFakeSource()
	src.put(0, 0, 0, 0, fullChunk(map[int]string{0: "minecraft:stone", 1: "minecraft:stone"}))
	src.put(0, 0, 31, 31, fullChunk(map[int]string{0: "minecraft:stone", 2: "minecraft:coal_ore"}))
	src.put(0, 1, 4, 4, fullChunk(map[int]string{5: "minecraft:iron_ore"}))
	src.put(1, 0, 2, 3, &fakeChunk{status: "minecraft:carvers", minY: 0, maxY: 15, layers: map[int]string{0: "minecraft:dirt"}})
	src.put(1, 1, 7, 7, fullChunk(map[int]string{0: "minecraft:stone", 5: "minecraft:iron_ore"}))
	return src
}

func TestScanZone_ThreadCountDoesNotChangeResult(t *testing.T) {
	zone, _ := NewZone(0, 3, 0, 2)
	var base BlockFrequencies
	for i, threads := range []int{1, 2, 3, 8, 0} {
		res, err := ScanZone(populatedSource(), Options{Dimension: DimensionOverworld, Zone: zone, Threads: threads})
		if err != nil {
			t.Fatalf("ScanZone: %v", err)
		}
		if res.RegionsTried != 6 || res.RegionsFound != 4 {
			t.Fatalf("threads=%d tried=%d found=%d", threads, res.RegionsTried, res.RegionsFound)
		}
		if res.Outcome != OutcomeOK {
			t.Fatalf("outcome: %v", res.Outcome)
		}
		if i == 0 {
			base = res.Frequencies
			continue
		}
		assertClose(t, res.Frequencies, base, 1e-9)
	}
	if base.ChunksCounted != 4 || base.Area != 4*256 {
		t.Fatalf("chunks=%d area=%d", base.ChunksCounted, base.Area)
	}
	// Stone: 256 at level 0 in three chunks, 256 at level 1 in one.
	if got := base.Frequencies["minecraft:stone"][0]; math.Abs(got-0.75) > 1e-12 {
		t.Fatalf("stone@0: got %v want 0.75", got)
	}
	if got := base.Frequencies["minecraft:stone"][1]; math.Abs(got-0.25) > 1e-12 {
		t.Fatalf("stone@1: got %v want 0.25", got)
	}
	if _, ok := base.Frequencies["minecraft:dirt"]; ok {
		t.Fatalf("protochunk should be skipped by default")
	}
}

func TestScanZone_ClosesHandlesAndReportsRegions(t *testing.T) {
	src := populatedSource()
	zone, _ := NewZone(0, 2, 0, 2)
	var (
		mu     sync.Mutex
		events []RegionEvent
	)
	_, err := ScanZone(src, Options{
		Dimension: DimensionOverworld,
		Zone:      zone,
		Threads:   2,
		Proto:     ProtoInclude,
		OnRegion: func(ev RegionEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("events: got %d want 4", len(events))
	}
	if src.opened != src.closed {
		t.Fatalf("handles leaked: opened=%d closed=%d", src.opened, src.closed)
	}
	var chunks uint64
	for _, ev := range events {
		if !ev.Found {
			t.Fatalf("all regions in 0..2 exist: %+v", ev)
		}
		chunks += ev.ChunksCounted
	}
	if chunks != 5 {
		t.Fatalf("chunks across events: got %d want 5", chunks)
	}
}

func TestScanZone_TerminalOutcomes(t *testing.T) {
	zone, _ := NewZone(10, 12, 10, 12)
	res, err := ScanZone(populatedSource(), Options{Dimension: DimensionOverworld, Zone: zone})
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if res.Outcome != OutcomeNoRegions || res.RegionsFound != 0 || !res.Frequencies.IsEmpty() {
		t.Fatalf("want no_regions, got %+v", res)
	}

	only, _ := NewZone(1, 2, 0, 1)
	res, err = ScanZone(populatedSource(), Options{Dimension: DimensionOverworld, Zone: only})
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if res.Outcome != OutcomeNoChunks || res.RegionsFound != 1 {
		t.Fatalf("want no_chunks, got outcome=%v found=%d", res.Outcome, res.RegionsFound)
	}
}

func TestScanZone_NilZoneEnumeratesSource(t *testing.T) {
	res, err := ScanZone(populatedSource(), Options{Dimension: DimensionOverworld, Threads: 3})
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if res.RegionsTried != 4 || res.RegionsFound != 4 {
		t.Fatalf("tried=%d found=%d", res.RegionsTried, res.RegionsFound)
	}

	if _, err := ScanZone(brokenSource{}, Options{Dimension: DimensionOverworld}); err == nil {
		t.Fatalf("listing failure should surface")
	}
}

func TestScanZone_UsesCache(t *testing.T) {
	src := populatedSource()
	for rc := range src.regions {
		src.stamps[rc] = "v1"
	}
	cache := newMemCache()
	zone, _ := NewZone(0, 2, 0, 2)
	opts := Options{Dimension: DimensionOverworld, Zone: zone, Threads: 2, Cache: cache}

	first, err := ScanZone(src, opts)
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if first.RegionsCached != 0 || cache.puts != 4 {
		t.Fatalf("first run: cached=%d puts=%d", first.RegionsCached, cache.puts)
	}

	second, err := ScanZone(src, opts)
	if err != nil {
		t.Fatalf("ScanZone: %v", err)
	}
	if second.RegionsCached != 4 || cache.puts != 4 {
		t.Fatalf("second run: cached=%d puts=%d", second.RegionsCached, cache.puts)
	}
	assertClose(t, second.Frequencies, first.Frequencies, 1e-12)

	opts.Proto = ProtoInclude
	third, _ := ScanZone(src, opts)
	if third.RegionsCached != 0 {
		t.Fatalf("proto option must be part of the cache key")
	}
}

func TestDetectVersion(t *testing.T) {
	src := newFakeSource()
	modern := fullChunk(nil)
	modern.version = AtLeast118
	src.put(3, 3, 9, 9, modern)
	legacy := fullChunk(nil)
	legacy.version = Pre118
	src.put(5, 5, 0, 0, legacy)

	zone, _ := NewZone(0, 4, 0, 4)
	v, err := DetectVersion(src, zone)
	if err != nil || v != AtLeast118 {
		t.Fatalf("DetectVersion: %v, %v", v, err)
	}

	v, err = DetectVersion(src, nil)
	if err != nil || v != AtLeast118 {
		t.Fatalf("nil zone should visit (3,3) before (5,5): %v, %v", v, err)
	}

	empty, _ := NewZone(-4, -2, -4, -2)
	if _, err := DetectVersion(src, empty); !errors.Is(err, ErrNoDecodableChunk) {
		t.Fatalf("want ErrNoDecodableChunk, got %v", err)
	}
	if src.opened != src.closed {
		t.Fatalf("handles leaked: opened=%d closed=%d", src.opened, src.closed)
	}
}

func TestRegionVersion_Offset(t *testing.T) {
	if Pre118.Offset() != 0 || AtLeast118.Offset() != 64 {
		t.Fatalf("offsets: %d %d", Pre118.Offset(), AtLeast118.Offset())
	}
}
