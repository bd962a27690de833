// Package render turns scan rasters into annotated PNG images: colour-mapped
// label and scalar maps, region boundary overlays and a physical scale bar.
// Every function returns a fresh image and leaves its inputs untouched.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"microtexture/internal/fsutil"
	"microtexture/internal/models"
)

// Colours used by the annotated outputs.
var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{A: 255}
)

// RGBRasterImage converts a DREAM3D colour raster into an image.
func RGBRasterImage(r models.RGBRaster) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		img.Pix[4*i] = r.Pix[3*i]
		img.Pix[4*i+1] = r.Pix[3*i+1]
		img.Pix[4*i+2] = r.Pix[3*i+2]
		img.Pix[4*i+3] = 255
	}
	return img
}

// MaskImage returns a copy of img with every pixel outside mask set to c.
func MaskImage(img image.Image, mask []bool, c color.RGBA) *image.RGBA {
	out := cloneRGBA(img)
	w := out.Bounds().Dx()
	for i, ok := range mask {
		if !ok {
			out.SetRGBA(i%w, i/w, c)
		}
	}
	return out
}

// OverlayBoundaries paints the inner boundary of every labelled region in c:
// labelled pixels with a 4-neighbour carrying a different label. Background
// pixels are never painted.
func OverlayBoundaries(img image.Image, labels models.LabelMap, c color.RGBA) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() != labels.Width || b.Dy() != labels.Height {
		return nil, fmt.Errorf("image is %dx%d, label map is %dx%d", b.Dx(), b.Dy(), labels.Width, labels.Height)
	}

	out := cloneRGBA(img)
	w, h := labels.Width, labels.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labels.At(x, y)
			if l == 0 {
				continue
			}
			if (x > 0 && labels.At(x-1, y) != l) ||
				(x < w-1 && labels.At(x+1, y) != l) ||
				(y > 0 && labels.At(x, y-1) != l) ||
				(y < h-1 && labels.At(x, y+1) != l) {
				out.SetRGBA(x, y, c)
			}
		}
	}
	return out, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG writes img to path atomically, creating parent directories.
func SavePNG(path string, img image.Image) error {
	return fsutil.WriteWith(path, func(w io.Writer) error {
		return EncodePNG(w, img)
	})
}

// cloneRGBA copies img into a new RGBA image anchored at the origin.
func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
