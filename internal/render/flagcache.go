package render

import (
	"image"
	"image/color"
	_ "image/gif"  // Support GIF format
	_ "image/jpeg" // Support JPEG format
	_ "image/png"  // Support PNG format
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Support WebP format
)

// DefaultMaxFlags bounds the decoded image cache
const (
	DefaultMaxFlags    = 256
	MaxConcurrentLoads = 4
)

var flagExtensions = []string{".png", ".webp", ".jpg", ".jpeg", ".gif"}

// FlagCache stores flag images scaled to the on-screen flag size, with
// LRU eviction. Missing files are remembered so the disk is probed once.
type FlagCache struct {
	dir    string
	width  int
	height int
	radius int

	mu      sync.RWMutex
	images  map[string]image.Image
	missing map[string]bool
	order   []string // LRU order (oldest first)
	maxSize int

	pending map[string]bool
	sem     chan struct{} // Semaphore for concurrent loads
}

// NewFlagCache creates a cache reading <dir>/<code>.<ext>
func NewFlagCache(dir string, width, height, maxSize int) *FlagCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxFlags
	}
	return &FlagCache{
		dir:     dir,
		width:   width,
		height:  height,
		radius:  max(2, height/8),
		images:  make(map[string]image.Image),
		missing: make(map[string]bool),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		pending: make(map[string]bool),
		sem:     make(chan struct{}, MaxConcurrentLoads),
	}
}

// Get returns a cached image or nil
func (c *FlagCache) Get(code string) image.Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images[code]
}

// GetOrLoad returns the cached image or starts an async load.
// Never blocks - returns nil immediately if not cached.
func (c *FlagCache) GetOrLoad(code string) image.Image {
	if c == nil || c.dir == "" || code == "" {
		return nil
	}

	c.mu.Lock()
	if img, ok := c.images[code]; ok {
		c.mu.Unlock()
		return img
	}
	if !c.pending[code] && !c.missing[code] {
		c.pending[code] = true
		go c.loadAsync(code)
	}
	c.mu.Unlock()

	return nil
}

// Preload loads every code synchronously, returning how many were found
func (c *FlagCache) Preload(codes []string) int {
	if c.dir == "" {
		return 0
	}
	found := 0
	for _, code := range codes {
		if c.load(code) {
			found++
		}
	}
	log.Printf("🏳️ Loaded %d/%d flag images from %s", found, len(codes), c.dir)
	return found
}

func (c *FlagCache) loadAsync(code string) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	defer func() {
		c.mu.Lock()
		delete(c.pending, code)
		c.mu.Unlock()
	}()

	c.load(code)
}

func (c *FlagCache) load(code string) bool {
	if c.dir == "" {
		return false
	}
	img, err := c.decode(code)
	if err != nil {
		c.mu.Lock()
		c.missing[code] = true
		c.mu.Unlock()
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Flag image for %s: %v", code, err)
		}
		return false
	}

	scaled := c.roundCorners(c.scale(img))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.images[code]; !ok {
		if len(c.images) >= c.maxSize {
			c.evict()
		}
		c.order = append(c.order, code)
	}
	c.images[code] = scaled
	return true
}

func (c *FlagCache) decode(code string) (image.Image, error) {
	var firstErr error
	for _, ext := range flagExtensions {
		f, err := os.Open(filepath.Join(c.dir, code+ext))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	return nil, firstErr
}

// scale resizes to the flag rectangle
func (c *FlagCache) scale(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// roundCorners clears pixels outside a rounded rectangle
func (c *FlagCache) roundCorners(img *image.RGBA) *image.RGBA {
	r := c.radius
	w, h := c.width, c.height
	transparent := color.RGBA{}

	for y := 0; y < r && y < h; y++ {
		for x := 0; x < r && x < w; x++ {
			dx := r - x
			dy := r - y
			if dx*dx+dy*dy <= r*r {
				continue
			}
			img.SetRGBA(x, y, transparent)
			img.SetRGBA(w-1-x, y, transparent)
			img.SetRGBA(x, h-1-y, transparent)
			img.SetRGBA(w-1-x, h-1-y, transparent)
		}
	}
	return img
}

// evict removes the oldest cached image
func (c *FlagCache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.images, oldest)
}

// Size returns the current cache size
func (c *FlagCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
