package kdimage

// Fill overwrites every pixel of r with c.
func Fill(buf *ColorBuffer, r Region, c Color) error {
	if err := buf.check(r); err != nil {
		return err
	}
	fill(buf, r, c)
	return nil
}

func fill(buf *ColorBuffer, r Region, c Color) {
	for y := r.YMin; y < r.YMax; y++ {
		row := buf.row(y, r.XMin, r.XMax)
		for i := range row {
			row[i] = c
		}
	}
}

// FillWithAverage flattens r to its average color and returns that color.
func FillWithAverage(buf *ColorBuffer, r Region) (Color, error) {
	if err := buf.check(r); err != nil {
		return Color{}, err
	}
	avg := averageColor(buf, r)
	fill(buf, r, avg)
	return avg, nil
}
