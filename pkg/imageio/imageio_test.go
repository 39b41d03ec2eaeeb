package imageio

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// createTestImage creates a simple gradient image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	return img
}

func TestNewWithConfigDefaults(t *testing.T) {
	o := NewWithConfig(Config{})
	assert.Equal(t, 95, o.config.Quality)
	assert.NotEmpty(t, o.config.SupportedFormats)
}

func TestSaveLoadPNG(t *testing.T) {
	o := New()
	path := filepath.Join(t.TempDir(), "plant.png")
	src := createTestImage(40, 30)

	require.NoError(t, o.Save(src, path))
	got, err := o.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Bounds().Dx())
	assert.Equal(t, 30, got.Bounds().Dy())

	r1, g1, b1, _ := src.At(10, 10).RGBA()
	r2, g2, b2, _ := got.At(10, 10).RGBA()
	assert.Equal(t, []uint32{r1, g1, b1}, []uint32{r2, g2, b2})
}

func TestSaveGrayKeepsValues(t *testing.T) {
	o := New()
	path := filepath.Join(t.TempDir(), "mask.png")
	mask := image.NewGray(image.Rect(0, 0, 4, 4))
	mask.SetGray(1, 1, color.Gray{Y: 255})

	require.NoError(t, o.Save(mask, path))
	got, err := o.Load(path)
	require.NoError(t, err)
	r, _, _, _ := got.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = got.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r)
}

func TestSaveJPEGAndWebP(t *testing.T) {
	o := New()
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "a.webp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, o.Save(createTestImage(16, 16), path), name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestSaveUnsupportedFormat(t *testing.T) {
	err := New().Save(createTestImage(4, 4), filepath.Join(t.TempDir(), "a.xyz"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New().Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, types.ErrIOFailure)
	// the underlying cause is kept in the message
	assert.ErrorContains(t, err, "no such file or directory")
}

func TestDecodeGarbage(t *testing.T) {
	_, err := New().Decode(bytes.NewReader([]byte("not an image")))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	o := New()
	require.NoError(t, o.Encode(&buf, createTestImage(4, 4), "png"))

	jpegOnly := NewWithConfig(Config{SupportedFormats: []string{"jpeg"}})
	_, err := jpegOnly.Decode(&buf)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), types.ErrInvalidInput)
	assert.ErrorIs(t, Validate(image.NewRGBA(image.Rect(0, 0, 0, 5))), types.ErrInvalidInput)
	assert.NoError(t, Validate(createTestImage(1, 1)))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "png", FormatOf("/a/b/c.PNG"))
	assert.Equal(t, "webp", FormatOf("c.webp"))
	assert.Equal(t, "", FormatOf("noext"))
}
