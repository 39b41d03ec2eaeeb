// Package cluster groups plant objects into the cells of a grid laid over
// the image and renders the audit composite that shows the grouping.
package cluster

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// Partitioner assigns contours to grid cells by their centroid
type Partitioner struct {
	config Config
	logger *zap.Logger
}

// Config holds the grid layout. A zero Cols means one column per object.
type Config struct {
	Rows int
	Cols int
}

// DefaultConfig lays the objects out as a single row
func DefaultConfig() Config {
	return Config{Rows: 1}
}

// New creates a Partitioner with the single row layout
func New() *Partitioner {
	return &Partitioner{config: DefaultConfig(), logger: zap.NewNop()}
}

// NewWithConfig creates a Partitioner with custom configuration
func NewWithConfig(config Config, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{config: config, logger: logger}
}

// Grid returns the rows and columns used for n objects
func (p *Partitioner) Grid(n int) (rows, cols int) {
	rows, cols = p.config.Rows, p.config.Cols
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = max(n, 1)
	}
	return rows, cols
}

// Partition places every contour in a grid cell and returns the non-empty
// cells in row-major order. Objects lists contour indices in ascending
// order. Rows always bin the centroid height. With an explicit Cols the
// centroid is binned across the width too; otherwise columns follow the
// left-to-right rank of the centroids, so each object has a cell to itself.
func (p *Partitioner) Partition(bounds image.Rectangle, contours []types.Contour) ([]types.Cluster, error) {
	if bounds.Empty() {
		return nil, fmt.Errorf("empty bounds: %w", types.ErrInvalidInput)
	}
	if len(contours) == 0 {
		return nil, nil
	}
	rows, cols := p.Grid(len(contours))

	centroids := lo.Map(contours, func(c types.Contour, _ int) [2]float64 {
		cx, cy := Centroid(c)
		return [2]float64{cx, cy}
	})
	var rank []int
	if p.Ranked() {
		rank = rankByX(centroids)
	}

	cells := lo.GroupBy(lo.Range(len(contours)), func(i int) int {
		row := cellOf(centroids[i][1], bounds.Min.Y, bounds.Dy(), rows)
		col := cellOf(centroids[i][0], bounds.Min.X, bounds.Dx(), cols)
		if rank != nil {
			col = rank[i]
		}
		return row*cols + col
	})

	keys := lo.Keys(cells)
	sort.Ints(keys)

	clusters := make([]types.Cluster, 0, len(keys))
	for _, k := range keys {
		row, col := k/cols, k%cols
		clusters = append(clusters, types.Cluster{
			Name:    fmt.Sprintf("r%dc%d", row, col),
			Row:     row,
			Col:     col,
			Objects: cells[k],
		})
	}

	p.logger.Debug("objects partitioned",
		zap.Int("objects", len(contours)),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Int("clusters", len(clusters)))
	return clusters, nil
}

// Ranked reports whether columns come from the left-to-right rank of the
// objects rather than from fixed bands across the image
func (p *Partitioner) Ranked() bool {
	return p.config.Cols < 1
}

// rankByX returns the column of every object: its position when sorted by
// centroid x, ties kept in extraction order
func rankByX(centroids [][2]float64) []int {
	order := lo.Range(len(centroids))
	sort.SliceStable(order, func(a, b int) bool {
		return centroids[order[a]][0] < centroids[order[b]][0]
	})
	rank := make([]int, len(centroids))
	for col, i := range order {
		rank[i] = col
	}
	return rank
}

// Centroid returns the area centroid of the polygon through the contour
// points, or the mean of the points when the polygon has no area.
func Centroid(c types.Contour) (float64, float64) {
	if len(c) == 0 {
		return 0, 0
	}
	var a, mx, my float64
	n := len(c)
	for i := 0; i < n; i++ {
		p0, p1 := c[i], c[(i+1)%n]
		cross := float64(p0.X*p1.Y - p1.X*p0.Y)
		a += cross
		mx += float64(p0.X+p1.X) * cross
		my += float64(p0.Y+p1.Y) * cross
	}
	if math.Abs(a) < 1e-9 {
		var sx, sy float64
		for _, p := range c {
			sx += float64(p.X)
			sy += float64(p.Y)
		}
		return sx / float64(n), sy / float64(n)
	}
	return mx / (3 * a), my / (3 * a)
}

func cellOf(v float64, origin, extent, cells int) int {
	cell := int(math.Floor((v - float64(origin)) * float64(cells) / float64(extent)))
	return min(max(cell, 0), cells-1)
}
