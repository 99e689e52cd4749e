package kdimage

const (
	// DefaultMaxDepth is the depth at which every region is flattened.
	DefaultMaxDepth = 10
	// DefaultVarianceThreshold: regions with a variance below it are homogeneous.
	DefaultVarianceThreshold = 10
	// DefaultMinRegionPixels: regions with fewer pixels are always homogeneous.
	DefaultMinRegionPixels = 4
)

// AverageColor returns the per-channel mean of r, truncated toward zero.
func AverageColor(buf *ColorBuffer, r Region) (Color, error) {
	if err := buf.check(r); err != nil {
		return Color{}, err
	}
	return averageColor(buf, r), nil
}

func averageColor(buf *ColorBuffer, r Region) Color {
	var sr, sg, sb int64
	for y := r.YMin; y < r.YMax; y++ {
		for _, c := range buf.row(y, r.XMin, r.XMax) {
			sr += int64(c.R)
			sg += int64(c.G)
			sb += int64(c.B)
		}
	}
	n := int64(r.PixelCount())
	return Color{uint8(sr / n), uint8(sg / n), uint8(sb / n)}
}

// Variance returns the summed squared channel deviation from the average
// color of r, divided by the pixel count and truncated.
func Variance(buf *ColorBuffer, r Region) (int, error) {
	if err := buf.check(r); err != nil {
		return 0, err
	}
	return variance(buf, r), nil
}

func variance(buf *ColorBuffer, r Region) int {
	avg := averageColor(buf, r)
	ar, ag, ab := int64(avg.R), int64(avg.G), int64(avg.B)
	var sum int64
	for y := r.YMin; y < r.YMax; y++ {
		for _, c := range buf.row(y, r.XMin, r.XMax) {
			dr := int64(c.R) - ar
			dg := int64(c.G) - ag
			db := int64(c.B) - ab
			sum += dr*dr + dg*dg + db*db
		}
	}
	return int(sum / int64(r.PixelCount()))
}

// IsHomogeneous applies the default homogeneity test: fewer than
// DefaultMinRegionPixels pixels, or variance below DefaultVarianceThreshold.
func IsHomogeneous(buf *ColorBuffer, r Region) (bool, error) {
	return DefaultOptions().IsHomogeneous(buf, r)
}

// IsHomogeneous is the homogeneity test with the thresholds of o.
func (o Options) IsHomogeneous(buf *ColorBuffer, r Region) (bool, error) {
	if err := buf.check(r); err != nil {
		return false, err
	}
	return o.homogeneous(buf, r), nil
}

func (o Options) homogeneous(buf *ColorBuffer, r Region) bool {
	if r.PixelCount() < o.MinRegionPixels {
		return true
	}
	return variance(buf, r) < o.VarianceThreshold
}
