package imagecache

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultThumbnailSize is the longest edge of a thumbnail when none is requested.
const DefaultThumbnailSize = 256

const thumbnailQuality = 85

// Thumbnail decodes data through the cache and returns a JPEG whose longest
// edge is at most maxEdge. Images already small enough are re-encoded unscaled.
func (c *Cache) Thumbnail(key string, data []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultThumbnailSize
	}
	src, err := c.Decode(key, data)
	if err != nil {
		return nil, err
	}
	dst := Scale(src, maxEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Scale fits src inside a maxEdge square, keeping the aspect ratio.
func Scale(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
