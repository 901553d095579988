package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Dimensions is the pixel size of an image together with its detected format.
type Dimensions struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name reported by the image package
	// ("png", "jpeg", "gif", "bmp", "tiff", "webp").
	Format string `json:"format"`
}

// DimensionCache provides thread-safe caching of image dimensions so that an
// image referenced by several annotation files is only probed once.
//
// Only the image header is decoded (image.DecodeConfig); pixel data is never
// held in memory. Entries are keyed by the exact path string given to Probe.
//
// DimensionCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewDimensionCache()
//	dims, err := cache.Probe("/data/frames/0001.jpg")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(dims.Width, dims.Height)
type DimensionCache struct {
	mu      sync.RWMutex
	entries map[string]Dimensions
}

// NewDimensionCache creates an empty dimension cache.
func NewDimensionCache() *DimensionCache {
	return &DimensionCache{
		entries: make(map[string]Dimensions),
	}
}

// Probe returns the dimensions of the image at path, reading only its header.
//
// Parameters:
//   - path: Path to an image file. Supported formats are PNG, JPEG, GIF, BMP,
//     TIFF and WebP.
//
// Returns:
//   - Dimensions: Width, height and decoder format name.
//   - error: Non-nil if the file cannot be opened or its header is not a
//     recognized image format.
func (c *DimensionCache) Probe(path string) (Dimensions, error) {
	c.mu.RLock()
	if d, ok := c.entries[path]; ok {
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("failed to decode image header: %w", err)
	}

	d := Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}

	c.mu.Lock()
	c.entries[path] = d
	c.mu.Unlock()

	return d, nil
}

// Clear removes all cached entries.
func (c *DimensionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Dimensions)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *DimensionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// imageExtensions lists the file extensions treated as images when scanning
// dataset directories.
var imageExtensions = map[string]bool{
	"bmp": true, "dng": true, "jpeg": true, "jpg": true, "mpo": true,
	"png": true, "tif": true, "tiff": true, "webp": true, "pfm": true,
}

// IsImageFile reports whether path has a supported image extension
// (case-insensitive).
func IsImageFile(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return imageExtensions[strings.ToLower(ext)]
}

// formatForExtension maps a file extension to the decoder name that
// image.DecodeConfig reports for that format. Unknown extensions map to "".
func formatForExtension(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return "png"
	case "jpg", "jpeg":
		return "jpeg"
	case "gif":
		return "gif"
	case "bmp":
		return "bmp"
	case "tif", "tiff":
		return "tiff"
	case "webp":
		return "webp"
	default:
		return ""
	}
}
