// Package universe caches the full list of item ids. The list is fetched
// from the catalog once and reused by every later epoch until the cache
// object is removed.
package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/storage"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/game-catalog-crawler/internal/storage/memory"
)

// FetchFunc retrieves the universe from upstream. complete reports whether
// ids is the whole catalog rather than a partial listing.
type FetchFunc func(ctx context.Context) (ids []int64, complete bool)

// Cache reads and writes the universe at one object path.
type Cache struct {
	blobs  storage.BlobStore
	path   string
	logger *zap.Logger
}

// New builds a Cache over an existing blob store.
func New(blobs storage.BlobStore, path string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{blobs: blobs, path: path, logger: logger}
}

// Open builds a Cache from a location. Supported forms are a filesystem
// path, gs://bucket/object and memory://object. The returned close func
// releases any client opened for the location.
func Open(ctx context.Context, location string, logger *zap.Logger) (*Cache, func() error, error) {
	noop := func() error { return nil }
	switch {
	case strings.HasPrefix(location, "gs://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, nil, fmt.Errorf("parse cache location: %w", err)
		}
		object := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || object == "" {
			return nil, nil, fmt.Errorf("cache location %q must be gs://bucket/object", location)
		}
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: u.Host})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return New(blobs, object, logger), client.Close, nil
	case strings.HasPrefix(location, "memory://"):
		return New(memory.NewBlobStore(), strings.TrimPrefix(location, "memory://"), logger), noop, nil
	case location == "":
		return nil, nil, errors.New("cache location is required")
	default:
		dir, file := filepath.Split(location)
		if dir == "" {
			dir = "."
		}
		blobs, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return nil, nil, err
		}
		return New(blobs, file, logger), noop, nil
	}
}

// Load returns the cached universe. ok is false when nothing is cached.
func (c *Cache) Load(ctx context.Context) ([]int64, bool, error) {
	data, err := c.blobs.GetObject(ctx, c.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read universe cache: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, false, fmt.Errorf("universe cache %s is not valid json", c.path)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, false, fmt.Errorf("universe cache %s is not a json array", c.path)
	}
	ids := make([]int64, 0, len(doc.Array()))
	doc.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			v = v.Get("appid")
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
		return true
	})
	return ids, true, nil
}

// Save writes the universe as a json array of decimal strings.
func (c *Cache) Save(ctx context.Context, ids []int64) error {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode universe: %w", err)
	}
	uri, err := c.blobs.PutObject(ctx, c.path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write universe cache: %w", err)
	}
	c.logger.Info("universe cached", zap.String("uri", uri), zap.Int("ids", len(ids)))
	return nil
}

// Resolve returns the cached universe, fetching and caching it on a miss.
// Only a complete fetch is cached. A partial one is returned for this epoch
// so the next run fetches again; an empty one yields no ids.
func (c *Cache) Resolve(ctx context.Context, fetch FetchFunc) ([]int64, error) {
	ids, ok, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		c.logger.Info("universe loaded from cache", zap.String("path", c.path), zap.Int("ids", len(ids)))
		return ids, nil
	}
	ids, complete := fetch(ctx)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if !complete {
		c.logger.Warn("universe fetch incomplete; not caching", zap.String("path", c.path), zap.Int("ids", len(ids)))
		return ids, nil
	}
	if err := c.Save(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}
