package frame

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// BT.601 luma weights, the conversion used when reading a color file as grayscale.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Cache provides thread-safe caching of decoded frames keyed by path.
//
// The MCP server keeps one for the life of the process, so repeated tool calls
// on the same frame decode it once. Cached frames stay in memory until Evict
// or Clear.
type Cache struct {
	mu     sync.RWMutex
	frames map[string]image.Image
}

// NewCache creates an empty frame cache.
func NewCache() *Cache {
	return &Cache{
		frames: make(map[string]image.Image),
	}
}

// Load returns the decoded frame at path, reading it from disk on first use.
func (c *Cache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.frames[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.frames[path] = img
	c.mu.Unlock()

	return img, nil
}

// LoadGray returns the frame at path as a single-channel image.
func (c *Cache) LoadGray(path string) (*image.Gray, error) {
	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	return Gray(img), nil
}

// Evict removes a single path from the cache.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.frames, path)
	c.mu.Unlock()
}

// Clear drops every cached frame.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.frames = make(map[string]image.Image)
	c.mu.Unlock()
}

// Len reports the number of cached frames.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// Open decodes a raster frame (PNG, JPEG, GIF, TIFF, BMP) from disk.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	return img, nil
}

// OpenGray decodes a frame from disk and converts it to grayscale.
func OpenGray(path string) (*image.Gray, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	return Gray(img), nil
}

// Gray returns img as a single-channel image with its origin at (0, 0).
// Grayscale input is copied; color input is converted with BT.601 weights and
// the luma is taken from the red channel of the equal-channel result.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
		for y := 0; y < out.Rect.Dy(); y++ {
			src := g.Pix[y*g.Stride : y*g.Stride+out.Rect.Dx()]
			copy(out.Pix[y*out.Stride:], src)
		}
		return out
	}
	rgba := effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB)
	out := image.NewGray(image.Rect(0, 0, rgba.Rect.Dx(), rgba.Rect.Dy()))
	for y := 0; y < out.Rect.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride:]
		dst := out.Pix[y*out.Stride : y*out.Stride+out.Rect.Dx()]
		for x := range dst {
			dst[x] = row[4*x]
		}
	}
	return out
}

// CropGray copies the region r of img (clipped to its bounds) into a new image
// with its origin at (0, 0).
func CropGray(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Rect)
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		start := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:], img.Pix[start:start+r.Dx()])
	}
	return out
}

// Info describes a frame file.
type Info struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	Grayscale     bool   `json:"grayscale"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadInfo loads a frame through the cache and reports its dimensions and format.
//
// Format is taken from the file extension. Grayscale is true when the decoder
// produced a single-channel image.
func LoadInfo(cache *Cache, path string) (*Info, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".tif", ".tiff":
		format = "tiff"
	case ".bmp":
		format = "bmp"
	}

	grayscale := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		grayscale = true
	}

	b := img.Bounds()
	return &Info{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		Grayscale:     grayscale,
		FileSizeBytes: stat.Size(),
	}, nil
}
