package mask

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/pkg/types"
)

const (
	// Foreground is the mask value of kept pixels
	Foreground = 255
	// DefaultKernelSize matches the smoothing used on the original masks
	DefaultKernelSize = 8
)

// Normalizer turns label maps into smoothed binary masks
type Normalizer struct {
	config Config
	logger *zap.Logger
}

// Config holds configuration for mask normalization
type Config struct {
	// KernelSize is the side of the median window; 1 disables smoothing
	KernelSize int
}

// New creates a Normalizer with the default kernel size
func New() *Normalizer {
	return &Normalizer{
		config: Config{KernelSize: DefaultKernelSize},
		logger: zap.NewNop(),
	}
}

// NewWithConfig creates a Normalizer with custom configuration
func NewWithConfig(config Config, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{config: config, logger: logger}
}

// Normalize converts labels to a binary mask and smooths it
func (n *Normalizer) Normalize(labels *types.LabelMap) (*image.Gray, error) {
	binary, err := ToBinary(labels)
	if err != nil {
		return nil, err
	}
	return n.Smooth(binary)
}

// Smooth median filters a binary mask with the configured kernel
func (n *Normalizer) Smooth(binary *image.Gray) (*image.Gray, error) {
	smoothed, err := MedianBlur(binary, n.config.KernelSize)
	if err != nil {
		return nil, err
	}
	n.logger.Debug("mask smoothed",
		zap.Int("kernel", n.config.KernelSize),
		zap.Int("foreground_before", CountForeground(binary)),
		zap.Int("foreground_after", CountForeground(smoothed)))
	return smoothed, nil
}

// ToBinary maps LabelPlant to 255 and LabelBackground to 0
func ToBinary(labels *types.LabelMap) (*image.Gray, error) {
	if labels.Empty() {
		return nil, fmt.Errorf("empty label map: %w", types.ErrInvalidInput)
	}
	out := image.NewGray(image.Rect(0, 0, labels.Width, labels.Height))
	for i, l := range labels.Labels {
		if l == types.LabelPlant {
			out.Pix[i] = Foreground
		}
	}
	return out, nil
}

// MedianBlur applies a ksize x ksize median filter with mirrored borders.
// The window spans offsets -ksize/2 .. ksize-1-ksize/2 and the output is the
// element of rank n/2 in the sorted window, so even sizes are accepted.
func MedianBlur(src *image.Gray, ksize int) (*image.Gray, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("empty mask: %w", types.ErrInvalidInput)
	}
	if ksize < 1 {
		return nil, fmt.Errorf("median kernel size %d must be positive: %w", ksize, types.ErrInvalidInput)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if ksize == 1 {
		for y := 0; y < h; y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return out, nil
	}

	lo := -(ksize / 2)
	hi := ksize - 1 - ksize/2
	rank := (ksize * ksize) / 2

	rows := make([]int, ksize)
	var hist [256]int
	for y := 0; y < h; y++ {
		for i := range rows {
			rows[i] = reflect(y+lo+i, h)
		}
		hist = [256]int{}
		for dx := lo; dx <= hi; dx++ {
			addColumn(&hist, src, rows, reflect(dx, w), 1)
		}
		out.Pix[y*out.Stride] = rankOf(&hist, rank)
		for x := 1; x < w; x++ {
			addColumn(&hist, src, rows, reflect(x-1+lo, w), -1)
			addColumn(&hist, src, rows, reflect(x+hi, w), 1)
			out.Pix[y*out.Stride+x] = rankOf(&hist, rank)
		}
	}
	return out, nil
}

// CountForeground returns the number of non-zero pixels
func CountForeground(m *image.Gray) int {
	if m == nil {
		return 0
	}
	b := m.Bounds()
	count := 0
	for y := 0; y < b.Dy(); y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+b.Dx()]
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
	}
	return count
}

func addColumn(hist *[256]int, src *image.Gray, rows []int, x, delta int) {
	for _, y := range rows {
		hist[src.Pix[y*src.Stride+x]] += delta
	}
}

func rankOf(hist *[256]int, rank int) uint8 {
	seen := 0
	for v := 0; v < 256; v++ {
		seen += hist[v]
		if seen > rank {
			return uint8(v)
		}
	}
	return 255
}

// reflect mirrors i into [0, n): d c b a | a b c d | d c b a
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
