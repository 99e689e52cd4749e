package utils

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/setanarut/kdimage"
	"gonum.org/v1/gonum/stat"
)

// Report summarizes one build: file sizes, tree shape and how far the
// flattened buffer drifted from the original.
type Report struct {
	Width, Height int

	// Sizes of the files on disk, zero when unknown.
	InputBytes, OutputBytes int64
	// zstd-compressed size of the raw RGB rasters.
	InputZstd, OutputZstd int

	Internal, Leaves int
	TreeHeight       int
	Reasons          map[kdimage.LeafReason]int
	LeafAreaMean     float64
	LeafAreaStdDev   float64
	LeafAreaMedian   float64
	LeafDepthMean    float64

	// Mean CIE76 distance between original and output, on a sample grid.
	MeanDeltaE float64
	// Peak signal-to-noise ratio over all channels; +Inf for identical buffers.
	PSNR float64
}

// deltaESamples caps the pixels converted to Lab for MeanDeltaE.
const deltaESamples = 1 << 16

// NewReport compares orig with out, the buffer root was built on.
func NewReport(orig, out *kdimage.ColorBuffer, root *kdimage.Node) (*Report, error) {
	if orig.Width() != out.Width() || orig.Height() != out.Height() {
		return nil, fmt.Errorf("report: size mismatch %dx%d vs %dx%d", orig.Width(), orig.Height(), out.Width(), out.Height())
	}
	r := &Report{
		Width:   orig.Width(),
		Height:  orig.Height(),
		Reasons: map[kdimage.LeafReason]int{},
	}

	var err error
	if r.InputZstd, err = zstdSize(orig.Bytes()); err != nil {
		return nil, err
	}
	if r.OutputZstd, err = zstdSize(out.Bytes()); err != nil {
		return nil, err
	}

	if root != nil {
		r.treeStats(root)
	}
	r.PSNR = psnr(orig, out)
	r.MeanDeltaE = meanDeltaE(orig, out)
	return r, nil
}

func (r *Report) treeStats(root *kdimage.Node) {
	r.Internal, r.Leaves = root.Count()
	r.TreeHeight = root.Height()
	leaves := root.Leaves()
	areas := make([]float64, len(leaves))
	depths := make([]float64, len(leaves))
	for i, l := range leaves {
		areas[i] = float64(l.Region.PixelCount())
		depths[i] = float64(l.Depth)
		r.Reasons[l.Reason]++
	}
	r.LeafAreaMean, r.LeafAreaStdDev = stat.MeanStdDev(areas, nil)
	if len(areas) < 2 {
		r.LeafAreaStdDev = 0
	}
	r.LeafDepthMean = stat.Mean(depths, nil)
	slices.Sort(areas)
	r.LeafAreaMedian = stat.Quantile(0.5, stat.Empirical, areas, nil)
}

func zstdSize(raw []byte) (int, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	return len(enc.EncodeAll(raw, nil)), nil
}

func psnr(a, b *kdimage.ColorBuffer) float64 {
	pa, pb := a.Bytes(), b.Bytes()
	sq := make([]float64, len(pa))
	for i := range pa {
		d := float64(pa[i]) - float64(pb[i])
		sq[i] = d * d
	}
	mse := stat.Mean(sq, nil)
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/mse)
}

func meanDeltaE(a, b *kdimage.ColorBuffer) float64 {
	w, h := a.Width(), a.Height()
	step := 1
	if n := w * h; n > deltaESamples {
		step = int(math.Sqrt(float64(n)/deltaESamples)) + 1
	}
	var dists []float64
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			ca, _ := colorful.MakeColor(a.At(x, y))
			cb, _ := colorful.MakeColor(b.At(x, y))
			dists = append(dists, ca.DistanceLab(cb))
		}
	}
	return stat.Mean(dists, nil)
}

func (r *Report) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"image        %dx%d\n"+
			"file size    original %s, output %s\n"+
			"zstd raster  original %s, output %s (%.1f%%)\n"+
			"tree         %d internal, %d leaves, height %d\n"+
			"leaves       %d homogeneous, %d depth-capped\n"+
			"leaf area    mean %.1f, median %.0f, stddev %.1f px; mean depth %.2f\n"+
			"quality      PSNR %.2f dB, mean ΔE %.2f\n",
		r.Width, r.Height,
		humanize.Bytes(uint64(r.InputBytes)), humanize.Bytes(uint64(r.OutputBytes)),
		humanize.Bytes(uint64(r.InputZstd)), humanize.Bytes(uint64(r.OutputZstd)), ratio(r.OutputZstd, r.InputZstd),
		r.Internal, r.Leaves, r.TreeHeight,
		r.Reasons[kdimage.Homogeneous], r.Reasons[kdimage.DepthCapped],
		r.LeafAreaMean, r.LeafAreaMedian, r.LeafAreaStdDev, r.LeafDepthMean,
		r.PSNR, r.MeanDeltaE)
	return err
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}
