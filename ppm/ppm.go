// Package ppm reads and writes Netpbm pixel maps (P6 binary and P3 ASCII)
// as kdimage color buffers.
//
// Written files always declare a maximum value of 255. ASCII output has the
// header on three lines ("P3", "<width> <height>", "255"). Every image row
// starts on a new line; its pixels follow as decimal "r g b" triples
// separated by a single space, and a row is wrapped before a triple would
// push the line past 70 characters. Triples are never split across lines.
package ppm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/setanarut/kdimage"
)

const (
	magicBinary = "P6"
	magicASCII  = "P3"
)

// Format selects the encoding used by Encode and WriteFile.
type Format int

const (
	FormatASCII Format = iota
	FormatBinary
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return "ascii"
}

// ParseFormat accepts "ascii"/"p3" and "binary"/"p6".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "ascii", "p3", "":
		return FormatASCII, nil
	case "binary", "p6":
		return FormatBinary, nil
	}
	return 0, fmt.Errorf("ppm: unknown format %q", s)
}

// Header describes a pixel map without its samples.
type Header struct {
	Magic         string
	Width, Height int
	MaxVal        int
}

func init() {
	image.RegisterFormat("ppm", magicBinary, decodeImage, decodeImageConfig)
	image.RegisterFormat("ppm", magicASCII, decodeImage, decodeImageConfig)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("ppm: %w: %s", kdimage.ErrMalformedInput, fmt.Sprintf(format, args...))
}

// ============ DECODE ============

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '#':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *scanner) token() (string, bool) {
	s.skipSpaceAndComments()
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && s.data[s.pos] != '#' {
		s.pos++
	}
	if start == s.pos {
		return "", false
	}
	return string(s.data[start:s.pos]), true
}

func (s *scanner) int(field string) (int, error) {
	tok, ok := s.token()
	if !ok {
		return 0, malformed("unreadable header: missing %s", field)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, malformed("unreadable header: %s %q is not a number", field, tok)
	}
	return v, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func readHeader(s *scanner) (Header, error) {
	var h Header
	magic, ok := s.token()
	if !ok {
		return h, malformed("unreadable header: empty input")
	}
	if magic != magicBinary && magic != magicASCII {
		return h, malformed("unreadable header: unsupported magic %q", magic)
	}
	h.Magic = magic
	var err error
	if h.Width, err = s.int("width"); err != nil {
		return h, err
	}
	if h.Height, err = s.int("height"); err != nil {
		return h, err
	}
	if h.MaxVal, err = s.int("max value"); err != nil {
		return h, err
	}
	if h.Width <= 0 || h.Height <= 0 {
		return h, malformed("non-positive dimensions %dx%d", h.Width, h.Height)
	}
	if h.MaxVal <= 0 || h.MaxVal > 255 {
		return h, malformed("max value %d outside [1,255]", h.MaxVal)
	}
	return h, nil
}

// DecodeConfig parses only the header.
func DecodeConfig(data []byte) (Header, error) {
	return readHeader(&scanner{data: data})
}

// Decode parses a P6 or P3 pixel map. Samples are taken as-is: they are
// neither rescaled to nor checked against the declared maximum value.
func Decode(data []byte) (*kdimage.ColorBuffer, error) {
	s := &scanner{data: data}
	h, err := readHeader(s)
	if err != nil {
		return nil, err
	}
	want := 3 * h.Width * h.Height
	if h.Magic == magicASCII {
		return decodeASCII(s, h, want)
	}

	// Exactly one whitespace byte separates the header from the raster.
	if s.pos >= len(data) || !isSpace(data[s.pos]) {
		return nil, malformed("missing whitespace after header")
	}
	raster := data[s.pos+1:]
	if len(raster) != want {
		return nil, malformed("wrong byte count: got %d, want %d for %dx%d", len(raster), want, h.Width, h.Height)
	}
	return kdimage.NewColorBufferFromBytes(h.Width, h.Height, raster)
}

func decodeASCII(s *scanner, h Header, want int) (*kdimage.ColorBuffer, error) {
	samples := make([]byte, 0, want)
	for {
		tok, ok := s.token()
		if !ok {
			break
		}
		if len(samples) == want {
			return nil, malformed("wrong sample count: more than %d for %dx%d", want, h.Width, h.Height)
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, malformed("sample %d: %q is not a number", len(samples), tok)
		}
		if v < 0 || v > 255 {
			return nil, malformed("sample %d: %d does not fit a byte", len(samples), v)
		}
		samples = append(samples, byte(v))
	}
	if len(samples) != want {
		return nil, malformed("wrong sample count: got %d, want %d for %dx%d", len(samples), want, h.Width, h.Height)
	}
	return kdimage.NewColorBufferFromBytes(h.Width, h.Height, samples)
}

func decodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func decodeImageConfig(r io.Reader) (image.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return image.Config{}, err
	}
	h, err := DecodeConfig(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: kdimage.ColorModel, Width: h.Width, Height: h.Height}, nil
}

// ============ ENCODE ============

// maxLineLen is the longest line EncodeASCII writes.
const maxLineLen = 70

// EncodeASCII writes buf as a P3 pixel map.
func EncodeASCII(w io.Writer, buf *kdimage.ColorBuffer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d %d\n255\n", magicASCII, buf.Width(), buf.Height())
	triple := make([]byte, 0, 11)
	for row := range buf.Height() {
		lineLen := 0
		for col := range buf.Width() {
			c, err := buf.Get(row, col)
			if err != nil {
				return err
			}
			triple = strconv.AppendUint(triple[:0], uint64(c.R), 10)
			triple = append(triple, ' ')
			triple = strconv.AppendUint(triple, uint64(c.G), 10)
			triple = append(triple, ' ')
			triple = strconv.AppendUint(triple, uint64(c.B), 10)

			if lineLen > 0 {
				if lineLen+1+len(triple) > maxLineLen {
					bw.WriteByte('\n')
					lineLen = 0
				} else {
					bw.WriteByte(' ')
					lineLen++
				}
			}
			bw.Write(triple)
			lineLen += len(triple)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// EncodeBinary writes buf as a P6 pixel map.
func EncodeBinary(w io.Writer, buf *kdimage.ColorBuffer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d %d\n255\n", magicBinary, buf.Width(), buf.Height())
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

func Encode(w io.Writer, buf *kdimage.ColorBuffer, f Format) error {
	if f == FormatBinary {
		return EncodeBinary(w, buf)
	}
	return EncodeASCII(w, buf)
}

// ============ FILES ============

func ReadFile(path string) (*kdimage.ColorBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	buf, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

func WriteFile(path string, buf *kdimage.ColorBuffer, f Format) error {
	var b bytes.Buffer
	if err := Encode(&b, buf, f); err != nil {
		return err
	}
	return os.WriteFile(path, b.Bytes(), 0o644)
}

// IsPPM reports whether path has a Netpbm extension.
func IsPPM(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ppm", ".pnm":
		return true
	}
	return false
}

// ErrNotPPM is returned by Sniff for data without a P3/P6 magic.
var ErrNotPPM = errors.New("ppm: not a pixel map")

// Sniff reports which magic data starts with.
func Sniff(data []byte) (string, error) {
	if len(data) < 2 {
		return "", ErrNotPPM
	}
	switch m := string(data[:2]); m {
	case magicBinary, magicASCII:
		return m, nil
	}
	return "", ErrNotPPM
}
