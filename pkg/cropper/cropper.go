package cropper

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// Cropper cuts plant objects out of the source image and the clean mask
type Cropper struct {
	config CropConfig
	logger *zap.Logger
}

// CropConfig holds configuration for cropping
type CropConfig struct {
	// Lazy returns views over the source image instead of copies
	Lazy bool
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{logger: zap.NewNop()}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig, logger *zap.Logger) *Cropper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cropper{config: config, logger: logger}
}

// BoundingBox returns the tight box around the contour points.
// Width and Height are max minus min, so a vertical line has Width 0.
func BoundingBox(c types.Contour) types.BoundingBox {
	if len(c) == 0 {
		return types.BoundingBox{}
	}
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return types.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Crop cuts box out of the image and the mask. Box coordinates are mask
// coordinates; the mask must have the same size as the image.
func (c *Cropper) Crop(img image.Image, mask *image.Gray, box types.BoundingBox) (types.CroppedPair, error) {
	if img == nil || mask == nil {
		return types.CroppedPair{}, fmt.Errorf("nothing to crop: %w", types.ErrInvalidInput)
	}
	if img.Bounds().Size() != mask.Bounds().Size() {
		return types.CroppedPair{}, fmt.Errorf("mask size %v does not match image size %v: %w",
			mask.Bounds().Size(), img.Bounds().Size(), types.ErrInvalidInput)
	}

	rect := box.Rect().Add(mask.Bounds().Min).Intersect(mask.Bounds())
	if rect.Empty() {
		return types.CroppedPair{}, fmt.Errorf("box %+v lies outside the image: %w", box, types.ErrInvalidInput)
	}
	imgRect := rect.Sub(mask.Bounds().Min).Add(img.Bounds().Min)

	var cropped image.Image
	if c.config.Lazy {
		cropped = &croppedImage{original: img, bounds: imgRect}
	} else {
		cropped = imaging.Crop(img, imgRect)
	}

	return types.CroppedPair{
		Image: cropped,
		Mask:  cropMask(mask, rect),
	}, nil
}

// CropAll computes the box of every contour and crops it. The returned
// objects keep the contour order as their extraction order.
func (c *Cropper) CropAll(img image.Image, mask *image.Gray, contours []types.Contour) ([]types.PlantObject, []types.CroppedPair, error) {
	objects := make([]types.PlantObject, 0, len(contours))
	pairs := make([]types.CroppedPair, 0, len(contours))
	for i, ct := range contours {
		box := BoundingBox(ct)
		pair, err := c.Crop(img, mask, box)
		if err != nil {
			return nil, nil, fmt.Errorf("crop object %d: %w", i, err)
		}
		c.logger.Debug("object cropped",
			zap.Int("order", i),
			zap.Int("x", box.X),
			zap.Int("y", box.Y),
			zap.Int("width", box.Width),
			zap.Int("height", box.Height))
		objects = append(objects, types.PlantObject{Order: i, Contour: ct, Box: box})
		pairs = append(pairs, pair)
	}
	return objects, pairs, nil
}

func cropMask(mask *image.Gray, rect image.Rectangle) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		src := mask.PixOffset(rect.Min.X, rect.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+rect.Dx()], mask.Pix[src:src+rect.Dx()])
	}
	return out
}

// croppedImage is a read-only view of a region, re-based at the origin
type croppedImage struct {
	original image.Image
	bounds   image.Rectangle
}

func (c *croppedImage) ColorModel() color.Model {
	return c.original.ColorModel()
}

func (c *croppedImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.bounds.Dx(), c.bounds.Dy())
}

func (c *croppedImage) At(x, y int) color.Color {
	pt := image.Point{X: x, Y: y}
	if !pt.In(c.Bounds()) {
		return color.RGBA{}
	}
	return c.original.At(x+c.bounds.Min.X, y+c.bounds.Min.Y)
}
