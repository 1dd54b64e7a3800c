// Package imaging prepares uploaded photographs for analysis: decode,
// global contrast stretch, and downscale to a bounded longest edge.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
)

// DefaultMaxEdge bounds the longest image edge after preprocessing.
const DefaultMaxEdge = 1024

// Processor implements the preprocess capability consumed by the pipeline.
type Processor struct {
	maxEdge int
}

// NewProcessor creates a Processor. maxEdge <= 0 selects DefaultMaxEdge.
func NewProcessor(maxEdge int) *Processor {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Processor{maxEdge: maxEdge}
}

// Preprocess decodes the image, stretches its luminance range, scales it
// down when the longest edge exceeds the bound, and re-encodes it as PNG.
// Deterministic per call; no shared state.
func (p *Processor) Preprocess(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img := stretchContrast(src)
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); max(w, h) > p.maxEdge {
		img = scaleDown(img, p.maxEdge)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// stretchContrast remaps each channel so the observed luminance range spans
// the full [0, 255] interval. A flat image is returned unchanged.
func stretchContrast(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)

	lo, hi := uint32(0xffff), uint32(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			if lum < lo {
				lo = lum
			}
			if lum > hi {
				hi = lum
			}
		}
	}

	if hi <= lo {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				out.Set(x, y, src.At(x, y))
			}
		}
		return out
	}

	span := hi - lo
	remap := func(v uint32) uint8 {
		if v <= lo {
			return 0
		}
		if v >= hi {
			return 255
		}
		return uint8((v - lo) * 255 / span)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			out.Set(x, y, color.RGBA{
				R: remap(r),
				G: remap(g),
				B: remap(b),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

// scaleDown resizes so the longest edge equals maxEdge, preserving aspect
// ratio, using nearest-neighbor sampling.
func scaleDown(src image.Image, maxEdge int) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = h * maxEdge / w
	} else {
		nh = maxEdge
		nw = w * maxEdge / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := bounds.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			sx := bounds.Min.X + x*w/nw
			out.Set(x, y, src.At(sx, sy))
		}
	}
	return out
}
