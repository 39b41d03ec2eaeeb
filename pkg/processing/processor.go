// Package processing runs the plant splitting pipeline: classify, build
// a clean mask, extract and filter objects, partition, crop, index and write.
package processing

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/internal/utils"
	"github.com/menta2k/plant-splitter/pkg/classifier"
	"github.com/menta2k/plant-splitter/pkg/cluster"
	"github.com/menta2k/plant-splitter/pkg/contour"
	"github.com/menta2k/plant-splitter/pkg/cropper"
	"github.com/menta2k/plant-splitter/pkg/imageio"
	"github.com/menta2k/plant-splitter/pkg/indexer"
	"github.com/menta2k/plant-splitter/pkg/mask"
	"github.com/menta2k/plant-splitter/pkg/types"
)

// Config controls one pipeline run
type Config struct {
	// KernelSize is the median window used to smooth the label mask
	KernelSize int
	// MinSize is the boundary point count an object must exceed
	MinSize int
	OutDir  string
	// AuditDir receives the cluster composite; empty disables it
	AuditDir string
	// Format is the encoding of the cropped images; masks are always png
	Format string
	// Debug writes the intermediate masks to AuditDir/debug
	Debug bool
	// Rows and Cols lay out the cluster grid; zero Cols is one per object
	Rows int
	Cols int
	// LazyCrop returns crops as views over the source image, not copies
	LazyCrop bool
	// Tracer extracts contours; nil uses contour.DefaultTracer
	Tracer contour.Tracer
}

// DefaultConfig returns the settings used by the command line tool
func DefaultConfig() Config {
	return Config{
		KernelSize: mask.DefaultKernelSize,
		MinSize:    100,
		OutDir:     ".",
		AuditDir:   "audit-cluster",
		Format:     "png",
		Rows:       1,
	}
}

// Processor wires the pipeline stages together
type Processor struct {
	config      Config
	classifier  classifier.Classifier
	io          *imageio.IO
	normalizer  *mask.Normalizer
	partitioner *cluster.Partitioner
	cropper     *cropper.Cropper
	writer      *indexer.Writer
	logger      *zap.Logger
}

// Option customises a Processor
type Option func(*Processor)

// WithLogger sets the logger shared by every stage
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithImageIO replaces the image codec
func WithImageIO(io *imageio.IO) Option {
	return func(p *Processor) {
		if io != nil {
			p.io = io
		}
	}
}

// NewProcessor validates config and builds a Processor around c
func NewProcessor(c classifier.Classifier, config Config, opts ...Option) (*Processor, error) {
	if c == nil {
		return nil, fmt.Errorf("a classifier is required: %w", types.ErrInvalidInput)
	}
	if config.MinSize < 1 {
		return nil, fmt.Errorf("minimum size %d must be positive: %w", config.MinSize, types.ErrInvalidInput)
	}
	if config.KernelSize < 1 {
		return nil, fmt.Errorf("kernel size %d must be positive: %w", config.KernelSize, types.ErrInvalidInput)
	}
	if config.Format == "" {
		config.Format = "png"
	}
	config.Format = strings.ToLower(config.Format)
	if config.OutDir == "" {
		config.OutDir = "."
	}
	if config.Tracer == nil {
		config.Tracer = contour.DefaultTracer
	}

	p := &Processor{
		config:     config,
		classifier: c,
		io:         imageio.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.normalizer = mask.NewWithConfig(mask.Config{KernelSize: config.KernelSize}, p.logger)
	p.partitioner = cluster.NewWithConfig(cluster.Config{Rows: config.Rows, Cols: config.Cols}, p.logger)
	p.cropper = cropper.NewWithConfig(cropper.CropConfig{Lazy: config.LazyCrop}, p.logger)
	p.writer = indexer.NewWriter(p.io, config.Format, p.logger)
	return p, nil
}

// Config returns the effective configuration
func (p *Processor) Config() Config {
	return p.config
}

// Stages holds the intermediate masks of a run
type Stages struct {
	Labels   *types.LabelMap
	Binary   *image.Gray
	Smoothed *image.Gray
	Clean    *image.Gray
	// Extracted counts the external contours before size filtering
	Extracted int
	// Contours are the external contours of the clean mask, in
	// extraction order; cluster object indices refer to them
	Contours []types.Contour
}

// Result describes one processed image
type Result struct {
	Source   string
	Width    int
	Height   int
	Plants   []types.Plant
	Clusters []types.Cluster
	Stages   Stages
	// AuditPath is empty when the composite was not written
	AuditPath string
	Duration  time.Duration
}

// Split runs every in-memory stage on img and returns the indexed plants.
// No plants is a valid result.
func (p *Processor) Split(img image.Image) (*Result, error) {
	if err := imageio.Validate(img); err != nil {
		return nil, err
	}
	start := time.Now()
	b := img.Bounds()
	res := &Result{Width: b.Dx(), Height: b.Dy()}

	labels, err := classifier.Run(p.classifier, img)
	if err != nil {
		return nil, err
	}
	res.Stages.Labels = labels

	binary, err := mask.ToBinary(labels)
	if err != nil {
		return nil, err
	}
	smoothed, err := p.normalizer.Smooth(binary)
	if err != nil {
		return nil, err
	}
	res.Stages.Binary, res.Stages.Smoothed = binary, smoothed

	objects, err := contour.ExternalContours(p.config.Tracer, smoothed)
	if err != nil {
		return nil, fmt.Errorf("extract objects: %w", err)
	}
	res.Stages.Extracted = len(objects)

	kept, err := contour.FilterBySize(objects, p.config.MinSize)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("objects filtered",
		zap.Int("extracted", len(objects)),
		zap.Int("kept", len(kept)),
		zap.Int("min_size", p.config.MinSize))

	clean := contour.Rasterize(smoothed.Bounds(), kept)
	res.Stages.Clean = clean
	if len(kept) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}

	// crops come from the clean mask, traced again
	final, err := contour.ExternalContours(p.config.Tracer, clean)
	if err != nil {
		return nil, fmt.Errorf("extract clean objects: %w", err)
	}
	res.Stages.Contours = final

	res.Clusters, err = p.partitioner.Partition(clean.Bounds(), final)
	if err != nil {
		return nil, err
	}

	plantObjects, pairs, err := p.cropper.CropAll(img, clean, final)
	if err != nil {
		return nil, err
	}
	res.Plants, err = indexer.Order(plantObjects, pairs)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Process loads the image at path, splits it and writes every plant into
// OutDir. The audit composite and debug masks are written on the side;
// failing to write them is logged and does not fail the run.
func (p *Processor) Process(path string) (*Result, error) {
	start := time.Now()
	logger := p.logger.With(zap.String("image", path))

	img, err := p.io.Load(path)
	if err != nil {
		return nil, err
	}

	res, err := p.Split(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Source = path
	base := utils.BaseName(path)

	if p.config.Debug {
		p.writeDebug(logger, base, img, res)
	}
	if p.config.AuditDir != "" && len(res.Stages.Contours) > 0 {
		res.AuditPath = p.writeAudit(logger, base, img, res)
	}

	if len(res.Plants) == 0 {
		logger.Info("no plants found",
			zap.Int("objects", res.Stages.Extracted),
			zap.Int("min_size", p.config.MinSize))
		res.Duration = time.Since(start)
		return res, nil
	}

	written, err := p.writer.WriteAll(p.config.OutDir, base, res.Plants)
	if err != nil {
		return nil, fmt.Errorf("%s: write plants: %w", path, err)
	}
	res.Plants = written
	res.Duration = time.Since(start)

	logger.Info("image split",
		zap.Int("plants", len(res.Plants)),
		zap.Int("clusters", len(res.Clusters)),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (p *Processor) writeAudit(logger *zap.Logger, base string, img image.Image, res *Result) string {
	rows, cols := p.partitioner.Grid(len(res.Stages.Contours))
	if p.partitioner.Ranked() {
		// ranked columns have no fixed bands to draw
		cols = 1
	}
	composite := cluster.RenderAudit(img, res.Stages.Contours, res.Clusters, rows, cols)

	path := filepath.Join(p.config.AuditDir, base+"_clustered.png")
	if err := p.save(composite, path); err != nil {
		logger.Warn("audit composite not written", zap.String("path", path), zap.Error(err))
		return ""
	}
	logger.Debug("audit composite written", zap.String("path", path))
	return path
}

func (p *Processor) writeDebug(logger *zap.Logger, base string, img image.Image, res *Result) {
	dir := filepath.Join(p.config.AuditDir, "debug")
	if p.config.AuditDir == "" {
		dir = filepath.Join(p.config.OutDir, "debug")
	}

	outputs := []struct {
		name string
		img  image.Image
	}{
		{"binary", res.Stages.Binary},
		{"smoothed", res.Stages.Smoothed},
		{"clean", res.Stages.Clean},
		{"boxes", CreateDebugOverlay(img, res.Plants)},
	}
	for _, out := range outputs {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", base, out.name))
		if err := p.save(out.img, path); err != nil {
			logger.Warn("debug image not written", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("debug image written", zap.String("path", path))
	}
}

func (p *Processor) save(img image.Image, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create %s: %v: %w", filepath.Dir(path), err, types.ErrIOFailure)
	}
	return p.io.Save(img, path)
}
