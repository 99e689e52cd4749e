package utils

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

func ParsePaletteMethod(s string) (PaletteMethod, error) {
	switch strings.ToLower(s) {
	case "dominantcolor", "dominant", "":
		return PaletteMethodDominantColor, nil
	case "kmeans":
		return PaletteMethodKMeans, nil
	}
	return 0, fmt.Errorf("unknown palette method %q", s)
}

// Swatch is a palette entry with the share of pixels it stands for.
type Swatch struct {
	Color  colorful.Color
	Weight float64
}

// SortPaletteByBrightness orders swatches from darkest to brightest
// using relative luminance.
func SortPaletteByBrightness(palette []Swatch) {
	luma := func(c colorful.Color) float64 {
		r, g, b := c.LinearRgb()
		return 0.2126*r + 0.7152*g + 0.0722*b
	}
	slices.SortFunc(palette, func(a, b Swatch) int {
		ya, yb := luma(a.Color), luma(b.Color)
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		}
		return 0
	})
}

// ExtractDominantPalette returns up to k dominant colors of img, heaviest first.
func ExtractDominantPalette(img image.Image, k int) []Swatch {
	if k <= 0 {
		return nil
	}
	found := dominantcolor.FindWeight(img, k)
	out := make([]Swatch, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, Swatch{Color: col.Clamped(), Weight: c.Weight})
	}
	return out
}

// ExtractKMeansPalette clusters the pixels of img in RGB space and returns
// the k cluster centers, most populated first.
func ExtractKMeansPalette(img image.Image, k int) ([]Swatch, error) {
	if k <= 0 {
		return nil, nil
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	// Subsample to keep kmeans tractable on large images.
	const maxSamples = 12000
	step := 1
	if n := b.Dx() * b.Dy(); n > maxSamples {
		step = int(math.Sqrt(float64(n)/maxSamples)) + 1
	}
	var dataset clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / 0xffff,
				float64(g) / 0xffff,
				float64(bl) / 0xffff,
			})
		}
	}
	k = min(k, len(dataset))

	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}
	out := make([]Swatch, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		out = append(out, Swatch{
			Color:  colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped(),
			Weight: float64(len(c.Observations)) / float64(len(dataset)),
		})
	}
	slices.SortFunc(out, func(a, b Swatch) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	return out, nil
}

// ExtractPalette dispatches on method. A failed or empty kmeans run falls
// back to dominantcolor.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []Swatch {
	if method == PaletteMethodKMeans {
		p, err := ExtractKMeansPalette(img, k)
		if err == nil && len(p) != 0 {
			return p
		}
		slog.Warn("palette: kmeans returned no colors, falling back to dominantcolor", "error", err)
	}
	return ExtractDominantPalette(img, k)
}

// SavePalette writes one tileSize square per swatch as a PNG strip.
func SavePalette(palette []Swatch, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, s := range palette {
		r, g, b := s.Color.Clamped().RGB255()
		c := color.RGBA{R: r, G: g, B: b, A: 255}
		for y := range tileSize {
			for x := i * tileSize; x < (i+1)*tileSize; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	return SaveImage(img, filename)
}
