package types

import (
	"errors"
	"image"
)

// Error kinds shared by every pipeline stage. Callers match them with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrClassificationFailure = errors.New("classification failure")
	ErrIOFailure             = errors.New("io failure")
)

// Label is the per-pixel classification produced by a classifier
type Label uint8

const (
	LabelBackground Label = iota
	LabelPlant
)

func (l Label) String() string {
	if l == LabelPlant {
		return "plant"
	}
	return "background"
}

// LabelMap holds one Label per pixel, row major
type LabelMap struct {
	Width  int
	Height int
	Labels []Label
}

// NewLabelMap creates a background-only label map of the given size
func NewLabelMap(width, height int) *LabelMap {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &LabelMap{
		Width:  width,
		Height: height,
		Labels: make([]Label, width*height),
	}
}

// Empty reports whether the map has no usable pixels
func (m *LabelMap) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Labels) != m.Width*m.Height
}

// At returns the label at x, y; out of range is LabelBackground
func (m *LabelMap) At(x, y int) Label {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return LabelBackground
	}
	return m.Labels[y*m.Width+x]
}

// Set assigns the label at x, y; out of range writes are ignored
func (m *LabelMap) Set(x, y int, l Label) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Labels[y*m.Width+x] = l
}

// Contour is the ordered list of boundary pixels of one connected region
type Contour []image.Point

// BorderType tells outer boundaries apart from hole boundaries
type BorderType int

const (
	Hole BorderType = iota + 1
	Outer
)

func (b BorderType) String() string {
	switch b {
	case Hole:
		return "hole"
	case Outer:
		return "outer"
	default:
		return "unknown"
	}
}

// Node is one hierarchy entry, aligned with the contour slice it describes.
// Indices refer to that slice; -1 means none (Parent -1 is top level).
type Node struct {
	Parent      int
	FirstChild  int
	NextSibling int
	Border      BorderType
}

// BoundingBox is the tight axis-aligned box around a contour.
// Width and Height are max minus min, as measured on boundary points.
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MaxX returns the right-most boundary column
func (b BoundingBox) MaxX() int {
	return b.X + b.Width
}

// MaxY returns the bottom-most boundary row
func (b BoundingBox) MaxY() int {
	return b.Y + b.Height
}

// Rect returns the crop rectangle. It encloses every contour point, so
// the max column and row are included and the result is at least 1x1.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+max(b.Width, 0)+1, b.Y+max(b.Height, 0)+1)
}

// PlantObject is a contour that survived the size filter
type PlantObject struct {
	// Order is the position of the contour in extraction order
	Order   int
	Contour Contour
	Box     BoundingBox
}

// Cluster groups the plant objects that fell into one grid cell
type Cluster struct {
	Name    string
	Row     int
	Col     int
	Objects []int
}

// CroppedPair is a cropped source image and its mask; both share one size
type CroppedPair struct {
	Image image.Image
	Mask  *image.Gray
}

// Plant is an indexed, cropped plant ready to be written
type Plant struct {
	Index     int
	Object    PlantObject
	Pair      CroppedPair
	ImagePath string
	MaskPath  string
}
