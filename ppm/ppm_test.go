package ppm

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/setanarut/kdimage"
)

func makeTestBuffer(t *testing.T, w, h int) *kdimage.ColorBuffer {
	t.Helper()
	buf, err := kdimage.NewColorBuffer(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for y := range h {
		for x := range w {
			c := kdimage.Color{
				R: uint8((x * 17) ^ (y * 31)),
				G: uint8((x * 43) + (y * 13)),
				B: uint8((x * 7) ^ (y * 11)),
			}
			if err := buf.Set(y, x, c); err != nil {
				t.Fatal(err)
			}
		}
	}
	return buf
}

func binaryPPM(w, h int, header string, raster []byte) []byte {
	var b bytes.Buffer
	b.WriteString(header)
	b.Write(raster)
	return b.Bytes()
}

func TestDecode_Binary(t *testing.T) {
	raster := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30}
	data := binaryPPM(2, 2, "P6\n# my image file\n2 2\n255\n", raster)

	buf, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Width() != 2 || buf.Height() != 2 {
		t.Fatalf("size: got %dx%d, want 2x2", buf.Width(), buf.Height())
	}
	want := []kdimage.Color{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}, {R: 0, G: 0, B: 255}, {R: 10, G: 20, B: 30}}
	for i, w := range want {
		got, _ := buf.Get(i/2, i%2)
		if got != w {
			t.Fatalf("pixel %d: got %v, want %v", i, got, w)
		}
	}
}

func TestDecode_RasterStartingWithWhitespaceByte(t *testing.T) {
	// The first sample is 0x0a ('\n'); only one whitespace byte may be skipped.
	raster := []byte{'\n', 1, 2}
	buf, err := Decode(binaryPPM(1, 1, "P6 1 1 255\n", raster))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, _ := buf.Get(0, 0)
	if got != (kdimage.Color{R: 10, G: 1, B: 2}) {
		t.Fatalf("got %v", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		msg  string
	}{
		{name: "empty", data: nil, msg: "empty input"},
		{name: "bad_magic", data: []byte("P5\n1 1\n255\n\x00"), msg: "unsupported magic"},
		{name: "missing_height", data: []byte("P6\n1"), msg: "missing height"},
		{name: "non_numeric", data: []byte("P6\nxx 1\n255\n"), msg: "not a number"},
		{name: "zero_width", data: []byte("P6\n0 1\n255\n"), msg: "non-positive"},
		{name: "negative_height", data: []byte("P6\n1 -2\n255\n"), msg: "non-positive"},
		{name: "maxval_too_large", data: []byte("P6\n1 1\n65535\n\x00\x00\x00"), msg: "max value"},
		{name: "short_raster", data: binaryPPM(2, 1, "P6\n2 1\n255\n", []byte{1, 2, 3}), msg: "wrong byte count"},
		{name: "long_raster", data: binaryPPM(1, 1, "P6\n1 1\n255\n", []byte{1, 2, 3, 4}), msg: "wrong byte count"},
		{name: "no_raster_separator", data: []byte("P6\n1 1\n255"), msg: "missing whitespace"},
		{name: "ascii_short", data: []byte("P3\n1 1\n255\n1 2\n"), msg: "wrong sample count"},
		{name: "ascii_long", data: []byte("P3\n1 1\n255\n1 2 3 4\n"), msg: "wrong sample count"},
		{name: "ascii_over_byte", data: []byte("P3\n1 1\n255\n1 2 256\n"), msg: "does not fit a byte"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, kdimage.ErrMalformedInput) {
				t.Fatalf("error %v does not wrap ErrMalformedInput", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q does not mention %q", err, tc.msg)
			}
		})
	}
}

func TestEncodeASCII_Layout(t *testing.T) {
	buf, _ := kdimage.NewColorBufferFromBytes(2, 2, []byte{
		1, 2, 3, 40, 50, 60,
		255, 0, 7, 8, 9, 100,
	})
	var out bytes.Buffer
	if err := EncodeASCII(&out, buf); err != nil {
		t.Fatal(err)
	}
	want := "P3\n2 2\n255\n1 2 3 40 50 60\n255 0 7 8 9 100\n"
	if got := out.String(); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestEncodeASCII_WrapsLongRows(t *testing.T) {
	buf := makeTestBuffer(t, 40, 3)
	var out bytes.Buffer
	if err := EncodeASCII(&out, buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	rows := 0
	for i, line := range lines {
		if len(line) > 70 {
			t.Fatalf("line %d has %d characters", i, len(line))
		}
		if line == "" || line[0] == ' ' || line[len(line)-1] == ' ' {
			t.Fatalf("line %d: %q", i, line)
		}
		if i >= 3 && len(strings.Fields(line))%3 != 0 {
			t.Fatalf("line %d splits a pixel: %q", i, line)
		}
		if i >= 3 {
			rows++
		}
	}
	if rows <= 3 {
		t.Fatalf("40 pixel rows should wrap, got %d raster lines", rows)
	}
	got, err := Decode(out.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(buf) {
		t.Fatal("wrapped output decodes to different pixels")
	}
}

func TestDecode_SamplesAboveMaxValKept(t *testing.T) {
	for _, data := range [][]byte{
		binaryPPM(1, 1, "P6\n1 1\n100\n", []byte{200, 7, 100}),
		[]byte("P3\n1 1\n100\n200 7 100\n"),
	} {
		buf, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%q): %v", data[:2], err)
		}
		if got, _ := buf.Get(0, 0); got != (kdimage.Color{R: 200, G: 7, B: 100}) {
			t.Fatalf("%s: got %v", data[:2], got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src := makeTestBuffer(t, 13, 7)

	for _, f := range []Format{FormatASCII, FormatBinary} {
		t.Run(f.String(), func(t *testing.T) {
			var first bytes.Buffer
			if err := EncodeBinary(&first, src); err != nil {
				t.Fatal(err)
			}
			decoded, err := Decode(first.Bytes())
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			var second bytes.Buffer
			if err := Encode(&second, decoded, f); err != nil {
				t.Fatal(err)
			}
			again, err := Decode(second.Bytes())
			if err != nil {
				t.Fatalf("Decode %s: %v", f, err)
			}
			if !again.Equal(src) {
				t.Fatalf("%s round trip changed pixels", f)
			}
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	h, err := DecodeConfig([]byte("P3 # comment\n640 # w\n480\n15\n"))
	if err != nil {
		t.Fatal(err)
	}
	if h != (Header{Magic: "P3", Width: 640, Height: 480, MaxVal: 15}) {
		t.Fatalf("header: got %+v", h)
	}
}

func TestImageDecodeRegistered(t *testing.T) {
	var b bytes.Buffer
	if err := EncodeBinary(&b, makeTestBuffer(t, 3, 2)); err != nil {
		t.Fatal(err)
	}
	img, name, err := image.Decode(&b)
	if err != nil {
		t.Fatal(err)
	}
	if name != "ppm" {
		t.Fatalf("format: got %q, want ppm", name)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds: got %v", got)
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	src := makeTestBuffer(t, 5, 4)
	for _, f := range []Format{FormatASCII, FormatBinary} {
		path := filepath.Join(dir, "out_"+f.String()+".ppm")
		if err := WriteFile(path, src, f); err != nil {
			t.Fatal(err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(src) {
			t.Fatalf("%s: file round trip changed pixels", f)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"ascii": FormatASCII, "P3": FormatASCII, "binary": FormatBinary, "p6": FormatBinary} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q): got %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Fatal("expected error for png")
	}
}

func TestSniff(t *testing.T) {
	if m, err := Sniff([]byte("P6\n")); err != nil || m != "P6" {
		t.Fatalf("got %q, %v", m, err)
	}
	if _, err := Sniff([]byte("\x89PNG")); !errors.Is(err, ErrNotPPM) {
		t.Fatalf("got %v, want ErrNotPPM", err)
	}
}
