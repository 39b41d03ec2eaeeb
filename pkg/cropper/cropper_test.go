package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// createTestImage creates an image whose red channel encodes x and green encodes y
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	return img
}

func createTestMask(width, height int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, width, height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		name    string
		contour types.Contour
		want    types.BoundingBox
	}{
		{"empty", nil, types.BoundingBox{}},
		{"single point", types.Contour{{X: 4, Y: 7}}, types.BoundingBox{X: 4, Y: 7}},
		{
			"square",
			types.Contour{{X: 2, Y: 3}, {X: 2, Y: 8}, {X: 9, Y: 8}, {X: 9, Y: 3}},
			types.BoundingBox{X: 2, Y: 3, Width: 7, Height: 5},
		},
		{
			"vertical line",
			types.Contour{{X: 5, Y: 1}, {X: 5, Y: 2}, {X: 5, Y: 3}, {X: 5, Y: 2}},
			types.BoundingBox{X: 5, Y: 1, Width: 0, Height: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundingBox(tt.contour))
		})
	}
}

func TestCrop(t *testing.T) {
	img := createTestImage(40, 30)
	mask := createTestMask(40, 30, image.Rect(10, 5, 20, 15))
	box := types.BoundingBox{X: 10, Y: 5, Width: 9, Height: 9}

	pair, err := New().Crop(img, mask, box)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 10, 10), pair.Image.Bounds())
	assert.Equal(t, pair.Image.Bounds(), pair.Mask.Bounds())

	r, g, _, _ := pair.Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(5), g>>8)
	r, g, _, _ = pair.Image.At(9, 9).RGBA()
	assert.Equal(t, uint32(19), r>>8)
	assert.Equal(t, uint32(14), g>>8)
	assert.Equal(t, uint8(255), pair.Mask.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), pair.Mask.GrayAt(9, 9).Y)
}

func TestCropKeepsEveryMaskPixel(t *testing.T) {
	img := createTestImage(100, 50)
	plant := image.Rect(60, 20, 71, 31)
	mask := createTestMask(100, 50, plant)
	// the traced boundary of the square runs along its outermost pixels
	contour := types.Contour{{X: 60, Y: 20}, {X: 60, Y: 30}, {X: 70, Y: 30}, {X: 70, Y: 20}}

	box := BoundingBox(contour)
	assert.Equal(t, types.BoundingBox{X: 60, Y: 20, Width: 10, Height: 10}, box)

	pair, err := New().Crop(img, mask, box)
	require.NoError(t, err)
	assert.Equal(t, plant.Size(), pair.Mask.Bounds().Size())

	foreground := 0
	for _, v := range pair.Mask.Pix {
		if v == 255 {
			foreground++
		}
	}
	assert.Equal(t, plant.Dx()*plant.Dy(), foreground)
}

func TestCropLazyMatchesCopy(t *testing.T) {
	img := createTestImage(30, 30)
	mask := createTestMask(30, 30, image.Rect(3, 4, 12, 20))
	box := types.BoundingBox{X: 3, Y: 4, Width: 8, Height: 15}

	eager, err := New().Crop(img, mask, box)
	require.NoError(t, err)
	lazy, err := NewWithConfig(CropConfig{Lazy: true}, nil).Crop(img, mask, box)
	require.NoError(t, err)

	require.Equal(t, image.Rect(0, 0, 9, 16), eager.Image.Bounds())
	require.Equal(t, eager.Image.Bounds(), lazy.Image.Bounds())
	for y := 0; y < 16; y++ {
		for x := 0; x < 9; x++ {
			er, eg, eb, _ := eager.Image.At(x, y).RGBA()
			lr, lg, lb, _ := lazy.Image.At(x, y).RGBA()
			assert.Equal(t, []uint32{er, eg, eb}, []uint32{lr, lg, lb})
		}
	}
	assert.Equal(t, eager.Mask.Pix, lazy.Mask.Pix)
}

func TestCropDegenerateBox(t *testing.T) {
	img := createTestImage(20, 20)
	mask := createTestMask(20, 20, image.Rect(5, 2, 6, 12))

	pair, err := New().Crop(img, mask, types.BoundingBox{X: 5, Y: 2, Width: 0, Height: 9})
	require.NoError(t, err)
	assert.Equal(t, 1, pair.Image.Bounds().Dx())
	assert.Equal(t, 10, pair.Image.Bounds().Dy())
	assert.Equal(t, pair.Image.Bounds(), pair.Mask.Bounds())

	pair, err = New().Crop(img, mask, types.BoundingBox{X: 7, Y: 7})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), pair.Image.Bounds())
}

func TestCropOffsetImage(t *testing.T) {
	full := createTestImage(50, 50)
	img := full.SubImage(image.Rect(10, 10, 40, 40))
	mask := createTestMask(30, 30, image.Rect(0, 0, 5, 5))

	pair, err := New().Crop(img, mask, types.BoundingBox{X: 2, Y: 3, Width: 4, Height: 4})
	require.NoError(t, err)
	r, g, _, _ := pair.Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(12), r>>8)
	assert.Equal(t, uint32(13), g>>8)
}

func TestCropInvalid(t *testing.T) {
	img := createTestImage(20, 20)

	_, err := New().Crop(img, image.NewGray(image.Rect(0, 0, 10, 20)), types.BoundingBox{Width: 2, Height: 2})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New().Crop(nil, image.NewGray(image.Rect(0, 0, 20, 20)), types.BoundingBox{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New().Crop(img, image.NewGray(image.Rect(0, 0, 20, 20)), types.BoundingBox{X: 30, Y: 30, Width: 3, Height: 3})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCropAll(t *testing.T) {
	img := createTestImage(60, 20)
	mask := createTestMask(60, 20, image.Rect(0, 0, 0, 0))
	contours := []types.Contour{
		{{X: 40, Y: 2}, {X: 40, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 2}},
		{{X: 5, Y: 5}, {X: 5, Y: 15}, {X: 12, Y: 15}, {X: 12, Y: 5}},
	}

	objects, pairs, err := New().CropAll(img, mask, contours)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Len(t, pairs, 2)

	assert.Equal(t, 0, objects[0].Order)
	assert.Equal(t, types.BoundingBox{X: 40, Y: 2, Width: 10, Height: 8}, objects[0].Box)
	assert.Equal(t, 1, objects[1].Order)
	assert.Equal(t, types.BoundingBox{X: 5, Y: 5, Width: 7, Height: 10}, objects[1].Box)

	assert.Equal(t, image.Pt(11, 9), pairs[0].Image.Bounds().Size())
	assert.Equal(t, image.Pt(8, 11), pairs[1].Image.Bounds().Size())
	for i, p := range pairs {
		assert.Equal(t, p.Image.Bounds().Size(), p.Mask.Bounds().Size(), "pair %d", i)
	}
}
