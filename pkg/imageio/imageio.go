package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// IO reads source images and writes crops, masks and audit images
type IO struct {
	config Config
}

// Config holds configuration for image reading and writing
type Config struct {
	// Quality is used for jpg and lossy webp output
	Quality  int
	Lossless bool
	// SupportedFormats lists the decoder names accepted on load
	SupportedFormats []string
}

// DefaultConfig returns the defaults used by New
func DefaultConfig() Config {
	return Config{
		Quality:          95,
		Lossless:         false,
		SupportedFormats: []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"},
	}
}

// New creates a new IO with default configuration
func New() *IO {
	return &IO{config: DefaultConfig()}
}

// NewWithConfig creates a new IO with custom configuration
func NewWithConfig(config Config) *IO {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultConfig().SupportedFormats
	}
	return &IO{config: config}
}

// Load decodes an image from a file
func (o *IO) Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %v: %w", path, err, types.ErrIOFailure)
	}
	img, err := o.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image from a reader and validates it
func (o *IO) Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, types.ErrInvalidInput)
	}
	if !o.isFormatSupported(format) {
		return nil, fmt.Errorf("unsupported image format %s: %w", format, types.ErrInvalidInput)
	}
	if err := Validate(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Save encodes img to path; the format follows the file extension
func (o *IO) Save(img image.Image, path string) error {
	if err := Validate(img); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v: %w", path, err, types.ErrIOFailure)
	}
	if err := o.Encode(f, img, FormatOf(path)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %v: %w", path, err, types.ErrIOFailure)
	}
	return nil
}

// Encode writes img to w in the named format (png, jpg, jpeg or webp)
func (o *IO) Encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch strings.ToLower(format) {
	case "webp":
		err = webp.Encode(w, img, &webp.Options{Lossless: o.config.Lossless, Quality: float32(o.config.Quality)})
	case "png":
		err = imaging.Encode(w, img, imaging.PNG)
	case "jpg", "jpeg":
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(o.config.Quality))
	default:
		return fmt.Errorf("unsupported output format %q: %w", format, types.ErrInvalidInput)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %v: %w", format, err, types.ErrIOFailure)
	}
	return nil
}

// Validate rejects nil and zero extent images
func Validate(img image.Image) error {
	if img == nil {
		return fmt.Errorf("nil image: %w", types.ErrInvalidInput)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("empty image %dx%d: %w", b.Dx(), b.Dy(), types.ErrInvalidInput)
	}
	return nil
}

// FormatOf returns the lower case extension of path without the dot
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func (o *IO) isFormatSupported(format string) bool {
	for _, supported := range o.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}
