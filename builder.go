package kdimage

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

type Options struct {
	// Depth at which a region is flattened whatever its content.
	// Each level halves (roughly) one dimension, so 10 levels give up to
	// 1024 leaves. Higher values keep more detail.
	MaxDepth int
	// Regions whose variance (summed squared RGB deviation per pixel) is
	// below this value are flattened. Higher => blockier output.
	VarianceThreshold int
	// Regions with fewer pixels are homogeneous without looking at them.
	MinRegionPixels int
	// Axis of the root split. Axes alternate strictly below it.
	FirstAxis Axis
	// Paint every split line with SeparatorColor once both halves are done.
	// Cosmetic only: the tree is the same with or without it.
	DrawSeparators bool
	SeparatorColor Color
	// Build left children on their own goroutine.
	Parallel bool
	// Regions smaller than this are always built on the calling goroutine.
	ParallelMinPixels int
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:          DefaultMaxDepth,
		VarianceThreshold: DefaultVarianceThreshold,
		MinRegionPixels:   DefaultMinRegionPixels,
		FirstAxis:         Vertical,
		SeparatorColor:    Color{255, 255, 255},
		ParallelMinPixels: 64 * 64,
	}
}

// OptionsFromSize returns the defaults, with parallel building switched on
// for images large enough to amortize the goroutines.
func OptionsFromSize(size image.Point) Options {
	opt := DefaultOptions()
	if size.X <= 0 || size.Y <= 0 {
		return opt
	}
	opt.Parallel = size.X*size.Y > 512*512
	return opt
}

func (o Options) Validate() error {
	var errs []error
	if o.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max depth must be >= 0, got %d", o.MaxDepth))
	}
	if o.VarianceThreshold < 0 {
		errs = append(errs, fmt.Errorf("variance threshold must be >= 0, got %d", o.VarianceThreshold))
	}
	if o.MinRegionPixels < 0 {
		errs = append(errs, fmt.Errorf("min region pixels must be >= 0, got %d", o.MinRegionPixels))
	}
	if o.FirstAxis != Vertical && o.FirstAxis != Horizontal {
		errs = append(errs, fmt.Errorf("unknown axis %d", o.FirstAxis))
	}
	if o.ParallelMinPixels < 0 {
		errs = append(errs, fmt.Errorf("parallel min pixels must be >= 0, got %d", o.ParallelMinPixels))
	}
	return errors.Join(errs...)
}

// NewRand returns a PCG-backed generator for a fixed seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type TreeBuilder struct {
	Buffer *ColorBuffer
	Rand   *rand.Rand
	Logger *slog.Logger
	Root   *Node
}

// NewTreeBuilder prepares a build over buf. A nil rng is replaced by a
// randomly seeded one.
func NewTreeBuilder(buf *ColorBuffer, rng *rand.Rand) *TreeBuilder {
	if rng == nil {
		rng = NewRand(rand.Uint64())
	}
	return &TreeBuilder{
		Buffer: buf,
		Rand:   rng,
		Logger: slog.Default(),
	}
}

// Build partitions the whole buffer and flattens every leaf region in place.
func (tb *TreeBuilder) Build(opt Options) (*Node, error) {
	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("kdimage: invalid options: %w", err)
	}
	start := time.Now()
	s := &buildState{buf: tb.Buffer, opt: opt}
	root, err := s.build(tb.Buffer.Full(), 0, opt.FirstAxis, tb.Rand)
	if err != nil {
		return nil, err
	}
	tb.Root = root
	if tb.Logger != nil {
		internal, leaves := root.Count()
		tb.Logger.Debug("partition tree built",
			"size", fmt.Sprintf("%dx%d", tb.Buffer.Width(), tb.Buffer.Height()),
			"internal", internal,
			"leaves", leaves,
			"height", root.Height(),
			"parallel", opt.Parallel,
			"elapsed", time.Since(start))
	}
	return root, nil
}

// ============ SPLIT SELECTION ============

// SplitRange returns the middle third [a, b) of [lo, hi).
func SplitRange(lo, hi int) (a, b int) {
	return lo + (hi-lo)/3, lo + (hi-lo)*2/3
}

// SplitPoint draws a split coordinate uniformly from SplitRange(lo, hi).
// For an extent of two the middle third is empty and the midpoint is used,
// so both halves are non-empty. hi-lo must be at least 2.
func SplitPoint(rng *rand.Rand, lo, hi int) int {
	a, b := SplitRange(lo, hi)
	if a <= lo {
		a = lo + 1
	}
	if b <= a {
		b = a + 1
	}
	return a + rng.IntN(b-a)
}

// childRand derives an independent generator from rng. Drawing both child
// seeds before recursing keeps the tree identical in parallel mode.
func childRand(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}

// ============ RECURSION ============

type buildState struct {
	buf *ColorBuffer
	opt Options
}

func (s *buildState) build(r Region, depth int, axis Axis, rng *rand.Rand) (*Node, error) {
	if err := s.buf.check(r); err != nil {
		return nil, err
	}
	if depth > s.opt.MaxDepth {
		return nil, fmt.Errorf("kdimage: depth %d exceeds max depth %d at %v", depth, s.opt.MaxDepth, r)
	}

	if depth >= s.opt.MaxDepth {
		return s.leaf(r, depth, DepthCapped), nil
	}
	if s.opt.homogeneous(s.buf, r) {
		return s.leaf(r, depth, Homogeneous), nil
	}
	// A one pixel extent cannot be cut along axis: the level is spent and the
	// same region is cut along the other axis instead.
	lo, hi := r.Extent(axis)
	if hi-lo < 2 {
		return s.build(r, depth+1, axis.Opposite(), rng)
	}

	at := SplitPoint(rng, lo, hi)
	lr, rr := r.Split(axis, at)
	lrng, rrng := childRand(rng), childRand(rng)
	next := axis.Opposite()

	var (
		left, right *Node
		lerr, rerr  error
	)
	if s.opt.Parallel && r.PixelCount() >= s.opt.ParallelMinPixels {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			left, lerr = s.build(lr, depth+1, next, lrng)
		}()
		right, rerr = s.build(rr, depth+1, next, rrng)
		wg.Wait()
	} else {
		left, lerr = s.build(lr, depth+1, next, lrng)
		if lerr == nil {
			right, rerr = s.build(rr, depth+1, next, rrng)
		}
	}
	if err := errors.Join(lerr, rerr); err != nil {
		return nil, err
	}

	if s.opt.DrawSeparators {
		s.drawSeparator(r, axis, at)
	}
	return &Node{
		Type:   InternalNode,
		Region: r,
		Depth:  depth,
		Split:  at,
		Axis:   axis,
		Left:   left,
		Right:  right,
	}, nil
}

func (s *buildState) leaf(r Region, depth int, reason LeafReason) *Node {
	avg := averageColor(s.buf, r)
	fill(s.buf, r, avg)
	return &Node{
		Type:   LeafNode,
		Region: r,
		Depth:  depth,
		Fill:   avg,
		Reason: reason,
	}
}

func (s *buildState) drawSeparator(r Region, axis Axis, at int) {
	if axis == Vertical {
		fill(s.buf, Region{XMin: at, YMin: r.YMin, XMax: at + 1, YMax: r.YMax}, s.opt.SeparatorColor)
		return
	}
	fill(s.buf, Region{XMin: r.XMin, YMin: at, XMax: r.XMax, YMax: at + 1}, s.opt.SeparatorColor)
}
