package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/lehigh-university-libraries/scenetiler/internal/grid"
)

// Slice cuts src into gridSize squares in raster-scan order and writes them to
// dir as tile_<index>.png. Edge tiles are smaller when the image does not divide
// evenly. It returns the number of tiles written.
func (p *Processor) Slice(src, dir string, gridSize int) (int, error) {
	img, err := decodeFile(src)
	if err != nil {
		return 0, err
	}
	return p.sliceImage(img, dir, gridSize)
}

// GenerateMasks builds per-tile mask images aligned with Slice output. The red
// channel marks land (infrared at or above landSensitivity) and the green
// channel marks cloud (blue at or above cloudSensitivity).
func (p *Processor) GenerateMasks(infrared, blue, dir string, gridSize, landSensitivity, cloudSensitivity int) (int, error) {
	ir, err := decodeFile(infrared)
	if err != nil {
		return 0, err
	}
	bl, err := decodeFile(blue)
	if err != nil {
		return 0, err
	}
	if ir.Bounds().Size() != bl.Bounds().Size() {
		return 0, fmt.Errorf("infrared band is %v but blue band is %v", ir.Bounds().Size(), bl.Bounds().Size())
	}

	b := ir.Bounds()
	mask := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBA{A: 255}
			if int(grayAt(ir, x, y)) >= landSensitivity {
				c.R = 255
			}
			if int(grayAt(bl, x, y)) >= cloudSensitivity {
				c.G = 255
			}
			mask.SetNRGBA(x, y, c)
		}
	}

	return p.sliceImage(mask, dir, gridSize)
}

// Coverage returns the percentage of pixels set in the red and green channels
// of a mask tile, in that order.
func (p *Processor) Coverage(path string) ([]float64, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return []float64{0, 0}, nil
	}

	var red, green int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.R >= maskOn {
				red++
			}
			if c.G >= maskOn {
				green++
			}
		}
	}

	return []float64{
		100 * float64(red) / float64(total),
		100 * float64(green) / float64(total),
	}, nil
}

func (p *Processor) sliceImage(img image.Image, dir string, gridSize int) (int, error) {
	if gridSize <= 0 {
		return 0, fmt.Errorf("grid size must be positive, got %d", gridSize)
	}

	b := img.Bounds()
	index := 0
	for top := 0; top < b.Dy(); top += gridSize {
		for left := 0; left < b.Dx(); left += gridSize {
			r := image.Rect(left, top, min(left+gridSize, b.Dx()), min(top+gridSize, b.Dy())).Add(b.Min)

			tile := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
			draw.Draw(tile, tile.Bounds(), img, r.Min, draw.Src)

			if err := p.writePNG(filepath.Join(dir, grid.TileFilename(index, "png")), tile); err != nil {
				return index, err
			}
			index++
		}
	}
	return index, nil
}
