// Package config loads scan jobs from yaml and resolves them into validated scan inputs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"regionscan.dev/internal/scan"
)

const (
	FormatJER = "jer"
	FormatCSV = "csv"
)

type Config struct {
	Path    string   `yaml:"path"`
	Dims    []string `yaml:"dims"`
	Zone    string   `yaml:"zone,omitempty"`
	Threads int      `yaml:"threads"`
	Proto   string   `yaml:"proto"`
	// Nil disables rarity filtering.
	Cutoff *float64 `yaml:"cutoff,omitempty"`

	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Compress bool   `yaml:"compress"`

	IndexDB      string `yaml:"index_db,omitempty"`
	CacheDir     string `yaml:"cache_dir,omitempty"`
	EventsDir    string `yaml:"events_dir,omitempty"`
	SnapshotDir  string `yaml:"snapshot_dir,omitempty"`
	ProgressAddr string `yaml:"progress_addr,omitempty"`

	Upload Upload `yaml:"upload,omitempty"`
}

// Upload names an S3-compatible bucket that receives the run artifacts. Credentials come
// from REGIONSCAN_UPLOAD_ACCESS_KEY_ID and REGIONSCAN_UPLOAD_SECRET_ACCESS_KEY.
type Upload struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

func (u Upload) Enabled() bool { return u.Endpoint != "" }

// Job is a validated Config.
type Job struct {
	Zone   *scan.Zone
	Proto  scan.ProtoOption
	Dims   []DimensionJob
	Cutoff *float64
}

type DimensionJob struct {
	ID  string
	Dir string
}

func Defaults() Config {
	return Config{
		Dims:   []string{scan.DimensionOverworld},
		Proto:  scan.ProtoSkip.String(),
		Format: FormatJER,
	}
}

// Load reads a yaml job file on top of Defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Path = strings.TrimSpace(c.Path)
	c.Zone = strings.TrimSpace(c.Zone)
	c.Proto = strings.ToLower(strings.TrimSpace(c.Proto))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = FormatJER
	}

	seen := map[string]bool{}
	dims := c.Dims[:0]
	for _, d := range c.Dims {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		dims = append(dims, d)
	}
	c.Dims = dims

	c.IndexDB = strings.TrimSpace(c.IndexDB)
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	c.EventsDir = strings.TrimSpace(c.EventsDir)
	c.SnapshotDir = strings.TrimSpace(c.SnapshotDir)
	c.ProgressAddr = strings.TrimSpace(c.ProgressAddr)
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	c.Upload.Bucket = strings.TrimSpace(c.Upload.Bucket)
	c.Upload.Region = strings.TrimSpace(c.Upload.Region)
	c.Upload.Prefix = strings.TrimSpace(c.Upload.Prefix)

	c.Output = strings.TrimSpace(c.Output)
	if c.Output == "" {
		if c.Format == FormatCSV {
			c.Output = filepath.Join("output", "world-gen.csv")
		} else {
			c.Output = filepath.Join("output", "world-gen.json")
		}
	}
	if c.Compress && !strings.HasSuffix(c.Output, ".zst") {
		c.Output += ".zst"
	}
}

// Validate reports every configuration error at once.
func (c Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve validates c and converts it into scan inputs. The save folder must exist.
func (c Config) Resolve() (Job, error) {
	var (
		job  Job
		errs []error
	)
	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	} else if fi, err := os.Stat(c.Path); err != nil {
		errs = append(errs, fmt.Errorf("path: %w", err))
	} else if !fi.IsDir() {
		errs = append(errs, fmt.Errorf("path %s: not a directory", c.Path))
	}

	if len(c.Dims) == 0 {
		errs = append(errs, errors.New("at least one dimension is required"))
	}
	for _, d := range c.Dims {
		rel, ok := scan.DimensionPath(d)
		if !ok {
			errs = append(errs, fmt.Errorf("dimension %q: expected namespace:name", d))
			continue
		}
		job.Dims = append(job.Dims, DimensionJob{ID: d, Dir: filepath.Join(c.Path, filepath.FromSlash(rel))})
	}

	if c.Zone != "" {
		z, err := scan.ParseZone(c.Zone)
		if err != nil {
			errs = append(errs, err)
		}
		job.Zone = z
	}

	proto, err := scan.ParseProtoOption(c.Proto)
	if err != nil {
		errs = append(errs, err)
	}
	job.Proto = proto

	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must be >= 0, got %d", c.Threads))
	}
	if c.Cutoff != nil {
		if err := scan.ValidateCutoff(*c.Cutoff); err != nil {
			errs = append(errs, err)
		}
		job.Cutoff = c.Cutoff
	}
	if c.Upload.Enabled() && c.Upload.Bucket == "" {
		errs = append(errs, errors.New("upload.bucket is required when upload.endpoint is set"))
	}
	switch c.Format {
	case FormatJER, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("format %q: expected %s or %s", c.Format, FormatJER, FormatCSV))
	}
	if err := errors.Join(errs...); err != nil {
		return Job{}, err
	}
	return job, nil
}
