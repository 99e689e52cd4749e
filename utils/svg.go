package utils

import (
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo"
	"github.com/setanarut/kdimage"
)

// RenderTreeSVG draws the leaves of root as filled rectangles and every
// split as a line, scale SVG units per pixel.
func RenderTreeSVG(w io.Writer, root *kdimage.Node, scale int) {
	if scale <= 0 {
		scale = 1
	}
	r := root.Region
	canvas := svg.New(w)
	canvas.Start(r.Dx()*scale, r.Dy()*scale)
	canvas.Group(fmt.Sprintf(`id="leaves" transform="translate(%d,%d)"`, -r.XMin*scale, -r.YMin*scale))
	for _, leaf := range root.Leaves() {
		lr := leaf.Region
		canvas.Rect(lr.XMin*scale, lr.YMin*scale, lr.Dx()*scale, lr.Dy()*scale,
			"fill:"+leaf.Fill.String())
	}
	canvas.Gend()

	canvas.Group(fmt.Sprintf(`id="splits" transform="translate(%d,%d)" style="stroke:white;stroke-width:1"`, -r.XMin*scale, -r.YMin*scale))
	root.Walk(func(n *kdimage.Node) bool {
		if n.IsLeaf() {
			return true
		}
		nr := n.Region
		if n.Axis == kdimage.Vertical {
			canvas.Line(n.Split*scale, nr.YMin*scale, n.Split*scale, nr.YMax*scale)
		} else {
			canvas.Line(nr.XMin*scale, n.Split*scale, nr.XMax*scale, n.Split*scale)
		}
		return true
	})
	canvas.Gend()
	canvas.End()
}

func SaveTreeSVG(root *kdimage.Node, scale int, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	RenderTreeSVG(f, root, scale)
	return f.Close()
}
