package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"regionscan.dev/internal/scan"
)

func TestLoad_ExampleJob(t *testing.T) {
	cfg, err := Load("../../configs/scan.yaml")
	if err != nil {
		t.Fatalf("load scan.yaml: %v", err)
	}
	if len(cfg.Dims) != 2 || cfg.Dims[1] != scan.DimensionNether {
		t.Fatalf("dims: %v", cfg.Dims)
	}
	if cfg.Cutoff == nil || *cfg.Cutoff != 0.0001 {
		t.Fatalf("cutoff: %v", cfg.Cutoff)
	}
	if cfg.Format != FormatJER || cfg.ProgressAddr != "127.0.0.1:8095" {
		t.Fatalf("format=%q progress=%q", cfg.Format, cfg.ProgressAddr)
	}
	if cfg.SnapshotDir != "data/snapshots" || cfg.IndexDB != "data/index.sqlite" {
		t.Fatalf("snapshot_dir=%q index_db=%q", cfg.SnapshotDir, cfg.IndexDB)
	}
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Dims) != 1 || cfg.Dims[0] != scan.DimensionOverworld {
		t.Fatalf("dims: %v", cfg.Dims)
	}
	if cfg.Output != filepath.Join("output", "world-gen.json") {
		t.Fatalf("output: %q", cfg.Output)
	}
}

func TestNormalize(t *testing.T) {
	cfg := Config{
		Dims:     []string{" minecraft:overworld", "minecraft:overworld", "", "jamd:mining"},
		Format:   " CSV ",
		Proto:    "Include",
		Compress: true,
	}
	cfg.Normalize()
	if len(cfg.Dims) != 2 || cfg.Dims[1] != "jamd:mining" {
		t.Fatalf("dims: %v", cfg.Dims)
	}
	if cfg.Format != FormatCSV || cfg.Proto != "include" {
		t.Fatalf("format=%q proto=%q", cfg.Format, cfg.Proto)
	}
	if cfg.Output != filepath.Join("output", "world-gen.csv")+".zst" {
		t.Fatalf("output: %q", cfg.Output)
	}
	cfg.Normalize()
	if strings.HasSuffix(cfg.Output, ".zst.zst") {
		t.Fatalf("normalize must be idempotent: %q", cfg.Output)
	}
}

func TestResolve(t *testing.T) {
	save := t.TempDir()
	cfg := Defaults()
	cfg.Path = save
	cfg.Dims = []string{scan.DimensionNether, "jamd:mining"}
	cfg.Zone = "0,2,-1,1"
	cfg.Proto = "only"
	cfg.Normalize()

	job, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if job.Zone == nil || job.Zone.Size() != 4 || job.Proto != scan.ProtoOnly {
		t.Fatalf("job: %+v", job)
	}
	want := []string{
		filepath.Join(save, "DIM-1", "region"),
		filepath.Join(save, "dimensions", "jamd", "mining", "region"),
	}
	for i, d := range job.Dims {
		if d.Dir != want[i] {
			t.Fatalf("dims[%d].Dir=%q want %q", i, d.Dir, want[i])
		}
	}
}

func TestValidate_ReportsConfigurationErrors(t *testing.T) {
	save := t.TempDir()
	file := filepath.Join(save, "level.dat")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	zero := 0.0

	cases := []struct {
		name string
		mut  func(*Config)
		is   error
	}{
		{"no path", func(c *Config) { c.Path = "" }, nil},
		{"path is file", func(c *Config) { c.Path = file }, nil},
		{"bad dimension", func(c *Config) { c.Dims = []string{"overworld"} }, nil},
		{"bad zone", func(c *Config) { c.Zone = "1,1,0,2" }, scan.ErrBadZone},
		{"bad proto", func(c *Config) { c.Proto = "sometimes" }, scan.ErrBadProtoOption},
		{"zero cutoff", func(c *Config) { c.Cutoff = &zero }, scan.ErrBadCutoff},
		{"negative threads", func(c *Config) { c.Threads = -1 }, nil},
		{"bad format", func(c *Config) { c.Format = "xml" }, nil},
		{"upload without bucket", func(c *Config) { c.Upload.Endpoint = "https://r2.example" }, nil},
	}
	for _, tc := range cases {
		cfg := Defaults()
		cfg.Path = save
		tc.mut(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.is != nil && !errors.Is(err, tc.is) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.is, err)
		}
	}

	cfg := Defaults()
	cfg.Path = save
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with a path should validate: %v", err)
	}
}
