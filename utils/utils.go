package utils

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/setanarut/kdimage"
	"github.com/setanarut/kdimage/ppm"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ReadImage decodes any registered format (ppm, png, jpeg, gif, bmp, tiff, webp).
func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ReadBuffer loads path into a color buffer. Pixel maps go through the
// strict ppm decoder so malformed files are reported as such.
func ReadBuffer(path string) (*kdimage.ColorBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := ppm.Sniff(data); err == nil {
		buf, err := ppm.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return buf, nil
	}
	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	return kdimage.FromImage(img)
}

// Downscale shrinks img to maxWidth keeping its aspect ratio.
// Images already narrow enough, or maxWidth <= 0, are returned unchanged.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := max(1, b.Dy()*maxWidth/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveBuffer writes buf as PNG when filename ends in .png and as a pixel map
// in format f otherwise.
func SaveBuffer(buf *kdimage.ColorBuffer, filename string, f ppm.Format) error {
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return SaveImage(buf, filename)
	}
	return ppm.WriteFile(filename, buf, f)
}

// FileSize returns the size of path in bytes.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
