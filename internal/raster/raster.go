// Package raster implements the image operations of the pipeline: band
// clamping, RGB compositing, grid slicing, mask tiles, coverage statistics and
// tile labelling. Bands may be PNG, JPEG, GIF or TIFF.
package raster

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/tiff"
)

// maskOn is the channel value at or above which a mask pixel counts as set.
const maskOn = 128

// Processor performs image operations on local files.
type Processor struct {
	encoder png.Encoder
}

// NewProcessor creates a Processor writing PNGs at default compression.
func NewProcessor() *Processor {
	return &Processor{encoder: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

// Dimensions returns the width and height of an image without decoding pixels.
func (p *Processor) Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read dimensions of %s: %w", path, err)
	}

	return cfg.Width, cfg.Height, nil
}

// Clamp rescales a single band so values in [0, ceiling] span 0-255 and values
// above the ceiling saturate. The result is written as 8-bit grayscale PNG.
func (p *Processor) Clamp(src, dst string, ceiling int) error {
	if ceiling <= 0 {
		return fmt.Errorf("clamp ceiling must be positive, got %d", ceiling)
	}
	img, err := decodeFile(src)
	if err != nil {
		return err
	}

	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
			if v > ceiling {
				v = ceiling
			}
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(v * 255 / ceiling)})
		}
	}

	return p.writePNG(dst, out)
}

// Assemble composites three clamped bands into an RGB image. The green channel
// is multiplied by greenBoost and saturates at 255.
func (p *Processor) Assemble(red, green, blue, dst string, greenBoost float64) error {
	bands := make([]image.Image, 3)
	for i, path := range []string{red, green, blue} {
		img, err := decodeFile(path)
		if err != nil {
			return err
		}
		bands[i] = img
	}

	b := bands[0].Bounds()
	for i, band := range bands[1:] {
		if band.Bounds().Size() != b.Size() {
			return fmt.Errorf("band %d is %v, expected %v", i+2, band.Bounds().Size(), b.Size())
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r := grayAt(bands[0], x, y)
			g := float64(grayAt(bands[1], x, y)) * greenBoost
			if g > 255 {
				g = 255
			}
			bl := grayAt(bands[2], x, y)
			out.SetRGBA(x, y, color.RGBA{R: r, G: uint8(g), B: bl, A: 255})
		}
	}

	return p.writePNG(dst, out)
}

// Annotate copies a tile and draws label in its top-left corner.
func (p *Processor) Annotate(src, dst, label string) error {
	img, err := decodeFile(src)
	if err != nil {
		return err
	}
	return p.writePNG(dst, drawLabel(img, label))
}

func grayAt(img image.Image, x, y int) uint8 {
	b := img.Bounds()
	return color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// writePNG encodes into a temporary file and renames it into place, so an
// interrupted run never leaves a truncated tile behind.
func (p *Processor) writePNG(dst string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*.png")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if err := p.encoder.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return nil
}
