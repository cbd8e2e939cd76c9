// Package cache stores per-region frequency tables in leveldb so unchanged regions are not
// decoded again on the next run.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"regionscan.dev/internal/scan"
)

const keyPrefix = "region|"

var _ scan.RegionCache = (*Cache)(nil)

type entry struct {
	Stamp string
	Table scan.BlockFrequencies
}

// Cache implements scan.RegionCache. It is safe for concurrent use.
type Cache struct {
	db  *leveldb.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	hits   atomic.Uint64
	misses atomic.Uint64
	puts   atomic.Uint64
}

func Open(dir string) (*Cache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db, enc: enc, dec: dec}, nil
}

func (c *Cache) Close() error {
	c.dec.Close()
	_ = c.enc.Close()
	return c.db.Close()
}

// The stamp lives in the value, so a changed region file overwrites its stale entry.
func dimensionPrefix(dimension string) string {
	return keyPrefix + dimension + "|"
}

func encodeKey(k scan.CacheKey) []byte {
	return []byte(fmt.Sprintf("%s%s|%d|%d", dimensionPrefix(k.Dimension), k.Proto, k.X, k.Z))
}

func (c *Cache) Get(k scan.CacheKey) (scan.BlockFrequencies, bool) {
	raw, err := c.db.Get(encodeKey(k), nil)
	if err != nil {
		c.misses.Add(1)
		return scan.BlockFrequencies{}, false
	}
	e, err := c.decode(raw)
	if err != nil || e.Stamp != k.Stamp {
		c.misses.Add(1)
		return scan.BlockFrequencies{}, false
	}
	c.hits.Add(1)
	if e.Table.Frequencies == nil {
		e.Table.Frequencies = map[string]map[int]float64{}
	}
	return e.Table, true
}

func (c *Cache) Put(k scan.CacheKey, f scan.BlockFrequencies) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{Stamp: k.Stamp, Table: f}); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := c.db.Put(encodeKey(k), c.enc.EncodeAll(buf.Bytes(), nil), nil); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	c.puts.Add(1)
	return nil
}

func (c *Cache) decode(raw []byte) (entry, error) {
	var e entry
	b, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return e, err
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		return e, err
	}
	return e, nil
}

type DimensionStats struct {
	Dimension string
	Entries   int
	Bytes     int64
}

type Stats struct {
	Dimensions []DimensionStats
	Entries    int
	Bytes      int64

	// Counters since Open.
	Hits   uint64
	Misses uint64
	Puts   uint64
}

func (c *Cache) Stats() (Stats, error) {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Puts: c.puts.Load()}
	byDim := map[string]*DimensionStats{}
	it := c.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	for it.Next() {
		rest := strings.TrimPrefix(string(it.Key()), keyPrefix)
		dim, _, ok := strings.Cut(rest, "|")
		if !ok {
			continue
		}
		d := byDim[dim]
		if d == nil {
			d = &DimensionStats{Dimension: dim}
			byDim[dim] = d
		}
		d.Entries++
		d.Bytes += int64(len(it.Value()))
		s.Entries++
		s.Bytes += int64(len(it.Value()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return s, err
	}
	for _, d := range byDim {
		s.Dimensions = append(s.Dimensions, *d)
	}
	sort.Slice(s.Dimensions, func(i, j int) bool { return s.Dimensions[i].Dimension < s.Dimensions[j].Dimension })
	return s, nil
}

// Purge deletes every entry of dimension, or every entry when dimension is empty.
func (c *Cache) Purge(dimension string) (int, error) {
	prefix := keyPrefix
	if dimension != "" {
		prefix = dimensionPrefix(dimension)
	}
	batch := new(leveldb.Batch)
	it := c.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, err
	}
	n := batch.Len()
	if n == 0 {
		return 0, nil
	}
	if err := c.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return n, nil
}

var ErrNotFound = errors.New("cache: entry not found")

// Lookup returns the stored entry for a region regardless of its stamp.
func (c *Cache) Lookup(dimension string, proto scan.ProtoOption, x, z int) (stamp string, table scan.BlockFrequencies, err error) {
	raw, err := c.db.Get(encodeKey(scan.CacheKey{Dimension: dimension, Proto: proto, X: x, Z: z}), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", table, ErrNotFound
	}
	if err != nil {
		return "", table, err
	}
	e, err := c.decode(raw)
	if err != nil {
		return "", table, err
	}
	return e.Stamp, e.Table, nil
}
