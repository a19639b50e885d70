package terrain

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/openfluke/neuralterrain/blend"
	"golang.org/x/image/tiff"
)

// WriteTIFF encodes hm as a 16-bit grayscale TIFF. Heights are clamped to
// [0, 1] and mapped onto the full 16-bit range; row 0 is the north edge.
func WriteTIFF(w io.Writer, hm *blend.Heightmap) error {
	img := image.NewGray16(image.Rect(0, 0, hm.Width, hm.Height))
	for y := 0; y < hm.Height; y++ {
		for x := 0; x < hm.Width; x++ {
			v := math.Min(math.Max(float64(hm.At(x, y)), 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * math.MaxUint16))})
		}
	}
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}
	return nil
}

// ReadTIFF decodes a grayscale TIFF into a heightmap with values in [0, 1].
// Colour images are converted with the standard luminance weights.
func ReadTIFF(r io.Reader) (*blend.Heightmap, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	b := img.Bounds()
	hm := blend.NewHeightmap(b.Dx(), b.Dy())
	for y := 0; y < hm.Height; y++ {
		for x := 0; x < hm.Width; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			hm.Set(x, y, float32(g.Y)/math.MaxUint16)
		}
	}
	return hm, nil
}

// SaveTIFF writes hm to path.
func SaveTIFF(path string, hm *blend.Heightmap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTIFF(f, hm); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadTIFF reads a heightmap from path.
func LoadTIFF(path string) (*blend.Heightmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTIFF(f)
}
