// Package contour extracts region borders from binary masks, filters them
// by boundary length and renders them back into clean masks.
package contour

import (
	"fmt"
	"image"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// Tracer extracts every border of the non-zero regions of a binary mask,
// returning the contours and a hierarchy aligned with them.
type Tracer func(binary *image.Gray) ([]types.Contour, []types.Node, error)

// DefaultTracer is the tracer used when none is configured
var DefaultTracer Tracer = FindContours

// PointMat is a position in the padded label matrix
type PointMat struct {
	Row int
	Col int
}

// neighbors are the 8-connected offsets, clockwise starting east
var neighbors = [8]PointMat{
	{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

type border struct {
	kind   types.BorderType
	parent int
}

// FindContours follows every outer and hole border of the mask using the
// Suzuki-Abe topological border following with 8-connectivity. Every
// boundary pixel is kept, in tracing order. Contours come out in raster
// order of their starting pixel; hierarchy[k] describes contours[k].
func FindContours(binary *image.Gray) ([]types.Contour, []types.Node, error) {
	if binary == nil || binary.Bounds().Empty() {
		return nil, nil, fmt.Errorf("empty mask: %w", types.ErrInvalidInput)
	}
	b := binary.Bounds()
	w, h := b.Dx(), b.Dy()

	// one pixel of background frame around the mask
	cols := w + 2
	f := make([]int32, (h+2)*cols)
	for y := 0; y < h; y++ {
		row := binary.Pix[y*binary.Stride : y*binary.Stride+w]
		for x, v := range row {
			if v != 0 {
				f[(y+1)*cols+x+1] = 1
			}
		}
	}

	// borders[0] is the frame; borders[k] was traced with NBD k+1
	borders := []border{{kind: types.Hole, parent: -1}}
	var contours []types.Contour
	nbd := int32(1)

	for i := 1; i <= h; i++ {
		lnbd := int32(1)
		for j := 1; j <= w; j++ {
			v := f[i*cols+j]
			if v == 0 {
				continue
			}

			var kind types.BorderType
			var from PointMat
			switch {
			case v == 1 && f[i*cols+j-1] == 0:
				kind, from = types.Outer, PointMat{i, j - 1}
			case v >= 1 && f[i*cols+j+1] == 0:
				kind, from = types.Hole, PointMat{i, j + 1}
				if v > 1 {
					lnbd = v
				}
			default:
				if v != 1 {
					lnbd = abs32(v)
				}
				continue
			}

			nbd++
			prev := borders[lnbd-1]
			parent := int(lnbd - 1)
			if prev.kind == kind {
				parent = prev.parent
			}
			borders = append(borders, border{kind: kind, parent: parent})

			start := PointMat{i, j}
			contours = append(contours, follow(f, cols, start, from, nbd, b.Min))

			if f[i*cols+j] != 1 {
				lnbd = abs32(f[i*cols+j])
			}
		}
	}

	return contours, buildHierarchy(borders[1:]), nil
}

// follow traces one border starting at start, entering from the zero
// pixel from, and labels the visited pixels with nbd.
func follow(f []int32, cols int, start, from PointMat, nbd int32, origin image.Point) types.Contour {
	at := func(p PointMat) int32 { return f[p.Row*cols+p.Col] }
	toPoint := func(p PointMat) image.Point {
		return image.Point{X: p.Col - 1 + origin.X, Y: p.Row - 1 + origin.Y}
	}

	d0 := direction(start, from)
	var first PointMat
	found := false
	for k := 0; k < 8; k++ {
		q := start.add(neighbors[(d0+k)%8])
		if at(q) != 0 {
			first, found = q, true
			break
		}
	}
	if !found {
		f[start.Row*cols+start.Col] = -nbd
		return types.Contour{toPoint(start)}
	}

	var points types.Contour
	prev, cur := first, start
	for {
		d := direction(cur, prev)
		eastZero := false
		var next PointMat
		for k := 1; k <= 8; k++ {
			dd := (d - k + 8) % 8
			q := cur.add(neighbors[dd])
			if at(q) != 0 {
				next = q
				break
			}
			if dd == 0 {
				eastZero = true
			}
		}

		idx := cur.Row*cols + cur.Col
		if eastZero {
			f[idx] = -nbd
		} else if f[idx] == 1 {
			f[idx] = nbd
		}
		points = append(points, toPoint(cur))

		if next == start && cur == first {
			return points
		}
		prev, cur = cur, next
	}
}

func buildHierarchy(borders []border) []types.Node {
	nodes := make([]types.Node, len(borders))
	lastChild := map[int]int{}
	for k, bd := range borders {
		// border parents index the frame-first slice
		parent := bd.parent - 1
		nodes[k] = types.Node{Parent: parent, FirstChild: -1, NextSibling: -1, Border: bd.kind}
		if last, ok := lastChild[parent]; ok {
			nodes[last].NextSibling = k
		} else if parent >= 0 {
			nodes[parent].FirstChild = k
		}
		lastChild[parent] = k
	}
	return nodes
}

// External returns the top level outer borders, in extraction order
func External(contours []types.Contour, hierarchy []types.Node) []types.Contour {
	var out []types.Contour
	for k, c := range contours {
		if k < len(hierarchy) && hierarchy[k].Parent == -1 && hierarchy[k].Border == types.Outer {
			out = append(out, c)
		}
	}
	return out
}

// ExternalContours traces binary and keeps only its external contours
func ExternalContours(tracer Tracer, binary *image.Gray) ([]types.Contour, error) {
	if tracer == nil {
		tracer = DefaultTracer
	}
	contours, hierarchy, err := tracer(binary)
	if err != nil {
		return nil, err
	}
	return External(contours, hierarchy), nil
}

func (p PointMat) add(o PointMat) PointMat {
	return PointMat{p.Row + o.Row, p.Col + o.Col}
}

// direction returns the neighbor index of to as seen from from
func direction(from, to PointMat) int {
	dr, dc := to.Row-from.Row, to.Col-from.Col
	for k, n := range neighbors {
		if n.Row == dr && n.Col == dc {
			return k
		}
	}
	return 0
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
