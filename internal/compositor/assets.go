package compositor

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"log/slog"
	"os"
	"sync"
)

// AssetCache resolves and memoizes still-image assets referenced by clips.
// Entries are written once per key and never evicted during a session. A
// failed load leaves the key absent so a later render can retry via
// [AssetCache.Load].
type AssetCache struct {
	mu     sync.Mutex
	images map[string]image.Image
	logger *slog.Logger
}

// NewAssetCache returns an empty asset cache.
func NewAssetCache(logger *slog.Logger) *AssetCache {
	return &AssetCache{
		images: make(map[string]image.Image),
		logger: logger,
	}
}

// Get returns the cached image for the given path, if present.
func (c *AssetCache) Get(path string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.images[path]
	return img, ok
}

// Load resolves the image at the given path, memoizing the decoded bitmap.
// It is idempotent: a path already cached is not decoded again.
func (c *AssetCache) Load(path string) (image.Image, error) {
	if img, ok := c.Get(path); ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Preload loads the given asset paths in the background. Loads are
// best-effort: per-asset failures are logged and never fatal.
func (c *AssetCache) Preload(paths []string) {
	go func() {
		for _, path := range paths {
			if _, err := c.Load(path); err != nil {
				c.logger.Warn("Asset preload failed", "path", path, "err", err)
			}
		}
	}()
}
