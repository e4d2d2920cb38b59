// Package tilecache keeps a small in-memory set of decoded map tiles backed
// by an on-disk tile directory, downloading tiles that aren't on disk yet.
package tilecache

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bpeel/flootay-sub000/internal/fileerror"
)

const (
	// Capacity is how many decoded tiles are kept in memory. Rendering
	// one map viewport touches at most a handful of tiles so the cache
	// only needs to cover a little more than that.
	Capacity = 8

	// TileSize is the pixel size of a map tile on both axes.
	TileSize = 256

	// Directory is the default on-disk tile directory.
	Directory = "map-tiles"
)

// Key identifies one slippy-map tile.
type Key struct {
	Zoom, X, Y int
}

// Filename is the on-disk name for a tile, relative to the cache directory.
func (k Key) Filename() string {
	return fmt.Sprintf("%d-%d-%d.png", k.Zoom, k.X, k.Y)
}

// Fetcher downloads one tile into the given file.
type Fetcher interface {
	Fetch(ctx context.Context, key Key, path string) error
}

// LoadError reports a tile file that exists but couldn't be decoded. It is
// distinct from a missing file, which triggers a fetch instead.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type entry struct {
	key  Key
	tile image.Image
}

// Cache is the tile store. Lookups are serialized per tile so that a tile
// is never downloaded twice concurrently.
type Cache struct {
	dir     string
	fetcher Fetcher

	group singleflight.Group

	mu sync.Mutex
	// entries is ordered most recently used first.
	entries []entry
}

// New creates a cache over the given tile directory. The directory is
// created on the first download.
func New(dir string, fetcher Fetcher) *Cache {
	if dir == "" {
		dir = Directory
	}

	return &Cache{dir: dir, fetcher: fetcher}
}

// lookup finds a cached tile and marks it most recently used.
func (c *Cache) lookup(key Key) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.entries {
		if e.key == key {
			copy(c.entries[1:i+1], c.entries[:i])
			c.entries[0] = e
			return e.tile, true
		}
	}

	return nil, false
}

// insert adds a tile as most recently used, evicting the least recently
// used one when the cache is full.
func (c *Cache) insert(key Key, tile image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Waiters sharing one fetch all insert the same tile.
	for i, e := range c.entries {
		if e.key == key {
			copy(c.entries[1:i+1], c.entries[:i])
			c.entries[0] = e
			return
		}
	}

	if len(c.entries) >= Capacity {
		c.entries = c.entries[:Capacity-1]
	}

	c.entries = append([]entry{{key: key, tile: tile}}, c.entries...)
}

func (c *Cache) loadTile(key Key) (image.Image, error) {
	path := filepath.Join(c.dir, key.Filename())

	f, err := os.Open(path)
	if err != nil {
		return nil, fileerror.Classify(path, err)
	}
	defer f.Close()

	tile, err := png.Decode(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return tile, nil
}

// loadOrFetch reads the tile from disk, downloading it first if the file
// doesn't exist. A file that exists but fails to decode is an error without
// a retry; only a missing file triggers the fetch.
func (c *Cache) loadOrFetch(ctx context.Context, key Key) (image.Image, error) {
	tile, err := c.loadTile(key)
	if err == nil {
		return tile, nil
	}

	if !fileerror.IsNotFound(err) {
		return nil, err
	}

	if err := os.MkdirAll(c.dir, 0777); err != nil {
		return nil, fileerror.Classify(c.dir, err)
	}

	path := filepath.Join(c.dir, key.Filename())

	if err := c.fetcher.Fetch(ctx, key, path); err != nil {
		return nil, err
	}

	return c.loadTile(key)
}

// Get returns the decoded tile for key, loading or downloading it on a
// cache miss.
func (c *Cache) Get(ctx context.Context, key Key) (image.Image, error) {
	if tile, ok := c.lookup(key); ok {
		return tile, nil
	}

	tile, err, _ := c.group.Do(key.Filename(), func() (interface{}, error) {
		return c.loadOrFetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	c.insert(key, tile.(image.Image))

	return tile.(image.Image), nil
}
