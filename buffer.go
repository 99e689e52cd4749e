package kdimage

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	ErrOutOfBounds    = errors.New("kdimage: coordinate out of bounds")
	ErrEmptyRegion    = errors.New("kdimage: empty region")
	ErrMalformedInput = errors.New("kdimage: malformed input")
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// RGBA implements color.Color. The color is always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorModel converts any color to Color, dropping alpha.
var ColorModel color.Model = color.ModelFunc(func(c color.Color) color.Color {
	if kc, ok := c.(Color); ok {
		return kc
	}
	r, g, b, _ := c.RGBA()
	return Color{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
})

// ColorBuffer is a W×H grid of colors stored row-major.
// It implements image.Image so it can be passed to encoders and palette tools.
type ColorBuffer struct {
	w, h int
	pix  []Color
}

func NewColorBuffer(w, h int) (*ColorBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrMalformedInput, w, h)
	}
	return &ColorBuffer{w: w, h: h, pix: make([]Color, w*h)}, nil
}

// NewColorBufferFromBytes builds a buffer from interleaved RGB bytes.
// len(data) must equal 3*w*h.
func NewColorBufferFromBytes(w, h int, data []byte) (*ColorBuffer, error) {
	buf, err := NewColorBuffer(w, h)
	if err != nil {
		return nil, err
	}
	if len(data) != 3*w*h {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%d", ErrMalformedInput, len(data), 3*w*h, w, h)
	}
	for i := range buf.pix {
		off := i * 3
		buf.pix[i] = Color{data[off], data[off+1], data[off+2]}
	}
	return buf, nil
}

// FromImage copies img into a new buffer whose origin is img.Bounds().Min.
func FromImage(img image.Image) (*ColorBuffer, error) {
	if cb, ok := img.(*ColorBuffer); ok {
		return cb.Clone(), nil
	}
	bounds := img.Bounds()
	buf, err := NewColorBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := range buf.h {
		for x := range buf.w {
			buf.pix[y*buf.w+x] = ColorModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(Color)
		}
	}
	return buf, nil
}

func (b *ColorBuffer) Width() int  { return b.w }
func (b *ColorBuffer) Height() int { return b.h }

// Full returns the region covering the whole buffer.
func (b *ColorBuffer) Full() Region {
	return Region{XMin: 0, YMin: 0, XMax: b.w, YMax: b.h}
}

func (b *ColorBuffer) Get(row, col int) (Color, error) {
	if row < 0 || row >= b.h || col < 0 || col >= b.w {
		return Color{}, fmt.Errorf("%w: (row %d, col %d) in %dx%d", ErrOutOfBounds, row, col, b.w, b.h)
	}
	return b.pix[row*b.w+col], nil
}

func (b *ColorBuffer) Set(row, col int, c Color) error {
	if row < 0 || row >= b.h || col < 0 || col >= b.w {
		return fmt.Errorf("%w: (row %d, col %d) in %dx%d", ErrOutOfBounds, row, col, b.w, b.h)
	}
	b.pix[row*b.w+col] = c
	return nil
}

func (b *ColorBuffer) Clone() *ColorBuffer {
	pix := make([]Color, len(b.pix))
	copy(pix, b.pix)
	return &ColorBuffer{w: b.w, h: b.h, pix: pix}
}

// Bytes returns the pixels as interleaved RGB, row-major.
func (b *ColorBuffer) Bytes() []byte {
	out := make([]byte, 0, len(b.pix)*3)
	for _, c := range b.pix {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}

// Equal reports whether both buffers have the same size and pixels.
func (b *ColorBuffer) Equal(o *ColorBuffer) bool {
	if b.w != o.w || b.h != o.h {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

func (b *ColorBuffer) ColorModel() color.Model { return ColorModel }

func (b *ColorBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.w, b.h) }

func (b *ColorBuffer) At(x, y int) color.Color {
	if x < 0 || x >= b.w || y < 0 || y >= b.h {
		return Color{}
	}
	return b.pix[y*b.w+x]
}

// row returns the slice of pixels [xMin, xMax) on row y. Callers must have
// checked the region against the buffer.
func (b *ColorBuffer) row(y, xMin, xMax int) []Color {
	off := y * b.w
	return b.pix[off+xMin : off+xMax]
}

// Region is a half-open rectangle over buffer coordinates, x = column, y = row.
type Region struct {
	XMin, YMin, XMax, YMax int
}

func (r Region) Dx() int { return r.XMax - r.XMin }
func (r Region) Dy() int { return r.YMax - r.YMin }

// PixelCount is zero for degenerate regions.
func (r Region) PixelCount() int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

func (r Region) Empty() bool {
	return r.XMin >= r.XMax || r.YMin >= r.YMax
}

// In reports whether r lies within a w×h buffer.
func (r Region) In(w, h int) bool {
	return r.XMin >= 0 && r.YMin >= 0 && r.XMax <= w && r.YMax <= h
}

// Extent returns the [lo, hi) range of r along the coordinate that axis cuts.
func (r Region) Extent(axis Axis) (lo, hi int) {
	if axis == Vertical {
		return r.XMin, r.XMax
	}
	return r.YMin, r.YMax
}

// Split cuts r at coordinate at along axis. The split line belongs to right.
func (r Region) Split(axis Axis, at int) (left, right Region) {
	left, right = r, r
	if axis == Vertical {
		left.XMax = at
		right.XMin = at
	} else {
		left.YMax = at
		right.YMin = at
	}
	return left, right
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax)
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.XMin, r.XMax, r.YMin, r.YMax)
}

// check validates r against the buffer before any pixel access.
func (b *ColorBuffer) check(r Region) error {
	if r.Empty() {
		return fmt.Errorf("%w: %v", ErrEmptyRegion, r)
	}
	if !r.In(b.w, b.h) {
		return fmt.Errorf("%w: region %v in %dx%d", ErrOutOfBounds, r, b.w, b.h)
	}
	return nil
}
