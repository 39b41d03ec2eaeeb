package plantsplit

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/plant-splitter/pkg/classifier"
	"github.com/menta2k/plant-splitter/pkg/imageio"
	"github.com/menta2k/plant-splitter/pkg/processing"
	"github.com/menta2k/plant-splitter/pkg/types"
)

// writePDFs writes a two class table where plant pixels have a pure green hue
func writePDFs(t *testing.T) string {
	t.Helper()
	row := func(class, channel string, peak int) string {
		values := make([]string, 256)
		for i := range values {
			switch {
			case peak < 0:
				values[i] = fmt.Sprintf("%g", 1.0/256)
			case i == peak:
				values[i] = "0.99"
			default:
				values[i] = "0.00001"
			}
		}
		return class + "\t" + channel + "\t" + strings.Join(values, "\t")
	}
	rows := []string{
		row("plant", "hue", 60),
		row("plant", "saturation", -1),
		row("plant", "value", -1),
		row("background", "hue", -1),
		row("background", "saturation", -1),
		row("background", "value", -1),
	}
	path := filepath.Join(t.TempDir(), "pdfs.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

// createTestImage draws pure green squares on a brown background
func createTestImage(width, height int, rects ...image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{110, 80, 50, 255})
		}
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.Set(x, y, color.RGBA{0, 255, 0, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	outDir := t.TempDir()
	s, err := New(writePDFs(t), 50, outDir)
	require.NoError(t, err)
	assert.Equal(t, 50, s.Config().MinSize)
	assert.Equal(t, outDir, s.Config().OutDir)
	assert.Equal(t, processing.DefaultConfig().KernelSize, s.Config().KernelSize)

	_, err = New(filepath.Join(t.TempDir(), "missing.txt"), 50, outDir)
	assert.ErrorIs(t, err, types.ErrIOFailure)

	_, err = New(writePDFs(t), 0, outDir)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSplitFileEndToEnd(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tray.png")
	img := createTestImage(240, 80,
		image.Rect(170, 15, 220, 65),
		image.Rect(20, 20, 60, 60),
		image.Rect(95, 10, 140, 70),
	)
	require.NoError(t, imageio.New().Save(img, src))

	config := processing.DefaultConfig()
	config.OutDir = filepath.Join(t.TempDir(), "plants")
	config.AuditDir = filepath.Join(t.TempDir(), "audit")
	config.MinSize = 50

	nb, err := classifier.LoadNaiveBayes(writePDFs(t))
	require.NoError(t, err)
	s, err := NewWithClassifier(nb, config, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	res, err := s.SplitFile(src)
	require.NoError(t, err)
	require.Len(t, res.Plants, 3)

	for i, p := range res.Plants {
		assert.Equal(t, i, p.Index)
		assert.FileExists(t, p.ImagePath)
		assert.FileExists(t, p.MaskPath)
		if i > 0 {
			assert.LessOrEqual(t, res.Plants[i-1].Object.Box.X, p.Object.Box.X)
		}
	}
	assert.Equal(t, filepath.Join(config.OutDir, "tray_0_p0.png"), res.Plants[0].ImagePath)
	assert.Equal(t, filepath.Join(config.OutDir, "tray_2_p2_mask.png"), res.Plants[2].MaskPath)
	assert.FileExists(t, filepath.Join(config.AuditDir, "tray_clustered.png"))
}

func TestSplitInMemory(t *testing.T) {
	nb, err := classifier.LoadNaiveBayes(writePDFs(t))
	require.NoError(t, err)

	config := processing.DefaultConfig()
	config.OutDir = t.TempDir()
	s, err := NewWithClassifier(nb, config)
	require.NoError(t, err)

	res, err := s.Split(createTestImage(100, 50))
	require.NoError(t, err)
	assert.Empty(t, res.Plants)

	entries, err := os.ReadDir(config.OutDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
