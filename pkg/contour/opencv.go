//go:build gocv
// +build gocv

package contour

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/menta2k/plant-splitter/pkg/types"
)

func init() {
	DefaultTracer = FindContoursOpenCV
}

// FindContoursOpenCV traces the mask with OpenCV (tree retrieval, no chain
// approximation). Its output has the same shape as FindContours.
func FindContoursOpenCV(binary *image.Gray) ([]types.Contour, []types.Node, error) {
	if binary == nil || binary.Bounds().Empty() {
		return nil, nil, fmt.Errorf("empty mask: %w", types.ErrInvalidInput)
	}
	src, err := gocv.ImageGrayToMatGray(binary)
	if err != nil {
		return nil, nil, fmt.Errorf("convert mask: %v: %w", err, types.ErrInvalidInput)
	}
	defer src.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	found := gocv.FindContoursWithParams(src, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxNone)
	defer found.Close()

	origin := binary.Bounds().Min
	n := found.Size()
	contours := make([]types.Contour, n)
	nodes := make([]types.Node, n)
	for k := 0; k < n; k++ {
		points := found.At(k).ToPoints()
		c := make(types.Contour, len(points))
		for i, p := range points {
			c[i] = p.Add(origin)
		}
		contours[k] = c

		// next, previous, first child, parent
		v := hierarchy.GetVeciAt(0, k)
		nodes[k] = types.Node{
			NextSibling: int(v[0]),
			FirstChild:  int(v[2]),
			Parent:      int(v[3]),
		}
	}
	for k := range nodes {
		depth := 0
		for p := nodes[k].Parent; p >= 0; p = nodes[p].Parent {
			depth++
		}
		nodes[k].Border = types.Outer
		if depth%2 == 1 {
			nodes[k].Border = types.Hole
		}
	}
	return contours, nodes, nil
}
