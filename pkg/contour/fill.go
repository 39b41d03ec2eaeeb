package contour

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// FilterBySize keeps the contours with more than threshold boundary
// points. Point count stands in for object size; it is not an area.
func FilterBySize(contours []types.Contour, threshold int) ([]types.Contour, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("size threshold %d must be positive: %w", threshold, types.ErrInvalidInput)
	}
	return lo.Filter(contours, func(c types.Contour, _ int) bool {
		return len(c) > threshold
	}), nil
}

// Rasterize renders the contours into a fresh mask of the given bounds,
// filling each polygon interior and its boundary with 255.
func Rasterize(bounds image.Rectangle, contours []types.Contour) *image.Gray {
	out := image.NewGray(bounds)
	for _, c := range contours {
		FillPoly(out, c, 255)
	}
	return out
}

// FillPoly fills the closed polygon through the points of c, boundary
// included, using the even-odd rule on pixel centres.
func FillPoly(dst *image.Gray, c types.Contour, value uint8) {
	if len(c) == 0 {
		return
	}
	b := dst.Bounds()
	minY, maxY := c[0].Y, c[0].Y
	for _, p := range c[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	minY = max(minY, b.Min.Y)
	maxY = min(maxY, b.Max.Y-1)

	xs := make([]float64, 0, 16)
	n := len(c)
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for k := 0; k < n; k++ {
			p0, p1 := c[k], c[(k+1)%n]
			if p0.Y == p1.Y {
				continue
			}
			if (p0.Y <= y && y < p1.Y) || (p1.Y <= y && y < p0.Y) {
				t := float64(y-p0.Y) / float64(p1.Y-p0.Y)
				xs = append(xs, float64(p0.X)+t*float64(p1.X-p0.X))
			}
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			x0 := max(int(math.Ceil(xs[k])), b.Min.X)
			x1 := min(int(math.Floor(xs[k+1])), b.Max.X-1)
			for x := x0; x <= x1; x++ {
				dst.Pix[dst.PixOffset(x, y)] = value
			}
		}
	}

	for _, p := range c {
		if p.In(b) {
			dst.Pix[dst.PixOffset(p.X, p.Y)] = value
		}
	}
}
