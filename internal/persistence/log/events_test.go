package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"regionscan.dev/internal/scan"
)

func TestRegionLog_WriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")
	l := NewRegionLog(dir, "run-7")
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Fatalf("log must not be created before the first entry")
	}

	var wg sync.WaitGroup
	for x := 0; x < 16; x++ {
		wg.Add(1)
		go func(x int) {
			defer wg.Done()
			ev := scan.RegionEvent{Dimension: scan.DimensionOverworld, X: x, Z: -x, Found: x%2 == 0, ChunksCounted: uint64(x), Elapsed: time.Duration(x) * time.Millisecond}
			if err := l.WriteRegion(ev); err != nil {
				t.Errorf("WriteRegion: %v", err)
			}
		}(x)
	}
	wg.Wait()
	if l.Entries() != 16 {
		t.Fatalf("entries: %d", l.Entries())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	seen := map[int]Entry{}
	err := ReadEntries(RunLogPath(dir, "run-7"), func(e Entry) error {
		seen[e.X] = e
		return nil
	})
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(seen) != 16 {
		t.Fatalf("decoded %d entries", len(seen))
	}
	e := seen[6]
	if e.RunID != "run-7" || e.Z != -6 || !e.Found || e.ChunksCounted != 6 || e.Elapsed != 6*time.Millisecond {
		t.Fatalf("entry 6: %+v", e)
	}
}

func TestRegionLog_EntriesMatchSchema(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "region_event.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, _ := json.Marshal(Entry{RunID: "r", RegionEvent: scan.RegionEvent{Dimension: scan.DimensionNether, X: 1, Z: 2, Found: true, Cached: true, ChunksCounted: 1024, BlocksCounted: 1024 * 32768}})
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
