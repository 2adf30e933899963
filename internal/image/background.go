package image

import (
	"crypto/sha256"
	"image"
	"log/slog"
	"sync"

	"slide-editor/internal/document"
)

type bgEntry struct {
	sum [sha256.Size]byte
	img image.Image // nil when decoding failed
}

// BackgroundCache holds decoded overlay backgrounds keyed by overlay id. An
// entry is only used while its content hash matches the overlay's bytes.
type BackgroundCache struct {
	mu      sync.Mutex
	entries map[string]bgEntry
	decode  func([]byte) (image.Image, error)
	logger  *slog.Logger
}

// NewBackgroundCache creates an empty cache.
func NewBackgroundCache(logger *slog.Logger) *BackgroundCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundCache{
		entries: make(map[string]bgEntry),
		decode:  DecodeBytes,
		logger:  logger,
	}
}

// Ensure decodes the background of every overlay whose bytes are new or
// changed. Failures are recorded so the overlay falls back to solid fill.
func (c *BackgroundCache) Ensure(overlays document.Overlays) {
	for _, o := range overlays {
		if len(o.BackgroundImage) == 0 {
			continue
		}
		sum := sha256.Sum256(o.BackgroundImage)

		c.mu.Lock()
		e, ok := c.entries[o.ID]
		c.mu.Unlock()
		if ok && e.sum == sum {
			continue
		}

		img, err := c.decode(o.BackgroundImage)
		if err != nil {
			c.logger.Warn("background decode failed, using fill color", "overlay", o.ID, "error", err)
			img = nil
		}
		c.mu.Lock()
		c.entries[o.ID] = bgEntry{sum: sum, img: img}
		c.mu.Unlock()
	}
}

// Background implements Backgrounds.
func (c *BackgroundCache) Background(o document.Overlay) image.Image {
	if len(o.BackgroundImage) == 0 {
		return nil
	}
	c.mu.Lock()
	e, ok := c.entries[o.ID]
	c.mu.Unlock()
	if !ok || e.img == nil {
		return nil
	}
	if e.sum != sha256.Sum256(o.BackgroundImage) {
		return nil
	}
	return e.img
}

// Prune removes entries whose overlay is not in keep.
func (c *BackgroundCache) Prune(keep document.Overlays) {
	live := make(map[string]bool, len(keep))
	for _, o := range keep {
		live[o.ID] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		if !live[id] {
			delete(c.entries, id)
		}
	}
}

// Len returns the number of cached entries.
func (c *BackgroundCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
