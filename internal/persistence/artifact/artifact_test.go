package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteRead_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "world-gen.json")
	if err := Write(path, "[]"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "[]" {
		t.Fatalf("plain file: %q %v", b, err)
	}
	got, err := Read(path)
	if err != nil || got != "[]" {
		t.Fatalf("Read: %q %v", got, err)
	}
}

func TestWriteRead_Compressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world-gen.csv.zst")
	content := "dim,block,level,freq\n" + strings.Repeat("minecraft:overworld,minecraft:stone,0,16\n", 500)
	if err := Write(path, content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() >= int64(len(content)) {
		t.Fatalf("expected compression: %d >= %d", fi.Size(), len(content))
	}
	got, err := Read(path)
	if err != nil || got != content {
		t.Fatalf("Read: %v (len %d want %d)", err, len(got), len(content))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestWrite_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	_ = Write(path, "first, longer content")
	if err := Write(path, "second"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, _ := Read(path); got != "second" {
		t.Fatalf("got %q", got)
	}
}
