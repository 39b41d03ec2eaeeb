// Package main is the plant-splitter command.
package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	plantsplit "github.com/menta2k/plant-splitter"
	"github.com/menta2k/plant-splitter/internal/config"
	"github.com/menta2k/plant-splitter/internal/logging"
	"github.com/menta2k/plant-splitter/internal/utils"
	"github.com/menta2k/plant-splitter/pkg/classifier"
	"github.com/menta2k/plant-splitter/pkg/imageio"
	"github.com/menta2k/plant-splitter/pkg/processing"
	"github.com/menta2k/plant-splitter/pkg/types"
)

const (
	flagImage       = "image"
	flagClassifier  = "classifier"
	flagSize        = "size"
	flagOutDir      = "outdir"
	flagDebug       = "debug"
	flagConfig      = "config"
	flagWriteConfig = "write-config"
	flagAuditDir    = "audit-dir"
	flagKernelSize  = "kernel-size"
	flagFormat      = "format"
	flagQuality     = "quality"
	flagWorkers     = "workers"
	flagRecursive   = "recursive"
	flagLogLevel    = "log-level"
	flagLogFile     = "log-file"
	flagLogJSON     = "log-json"
)

// exit codes by error kind
const (
	exitFailure        = 1
	exitInvalidInput   = 2
	exitIOFailure      = 3
	exitClassification = 4
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "plant-splitter:", err)
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "plant-splitter",
		Usage:   "split a multi-plant image into one image and mask per plant",
		Version: plantsplit.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagImage,
				Aliases: []string{"i"},
				Usage:   "input image `PATH`, or a directory of images",
				EnvVars: []string{"PLANT_SPLITTER_IMAGE"},
			},
			&cli.StringFlag{
				Name:    flagClassifier,
				Aliases: []string{"c"},
				Usage:   "naive Bayes PDF table `FILE`",
				EnvVars: []string{"PLANT_SPLITTER_CLASSIFIER"},
			},
			&cli.IntFlag{
				Name:    flagSize,
				Aliases: []string{"s"},
				Usage:   "minimum object size as boundary point count",
				EnvVars: []string{"PLANT_SPLITTER_SIZE"},
			},
			&cli.StringFlag{
				Name:    flagOutDir,
				Aliases: []string{"o"},
				Usage:   "output `DIR` for plant images and masks",
				EnvVars: []string{"PLANT_SPLITTER_OUTDIR"},
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"D"},
				Usage:   "write intermediate masks and enable debug logging",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "load configuration from `FILE` (default ~/.config/plant-splitter/config.json if present)",
				EnvVars: []string{"PLANT_SPLITTER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  flagWriteConfig,
				Usage: "write the effective configuration to `FILE` and exit",
			},
			&cli.StringFlag{
				Name:  flagAuditDir,
				Usage: "`DIR` for the cluster audit composite; empty disables it",
			},
			&cli.IntFlag{
				Name:  flagKernelSize,
				Usage: "median smoothing window size",
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Usage: "plant image format: png, jpg or webp",
			},
			&cli.IntFlag{
				Name:  flagQuality,
				Usage: "jpg and webp quality (1-100)",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "images processed in parallel in directory mode",
			},
			&cli.BoolFlag{
				Name:  flagRecursive,
				Usage: "descend into subdirectories in directory mode",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "debug, info, warn, error or quiet",
				EnvVars: []string{"PLANT_SPLITTER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also log to a rotated `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagLogJSON,
				Usage: "log JSON to stderr",
			},
		},
		Action: run,
	}
}

// loadConfig starts from the defaults or the config file and applies
// every flag that was set. Without --config the per-user file from
// config.GetConfigPath is used when it exists.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	path := c.String(flagConfig)
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
		}
		cfg = loaded
	}

	if c.IsSet(flagClassifier) {
		cfg.Classifier.Path = c.String(flagClassifier)
	}
	if c.IsSet(flagSize) {
		cfg.Filter.MinSize = c.Int(flagSize)
	}
	if c.IsSet(flagOutDir) {
		cfg.Output.Dir = c.String(flagOutDir)
	}
	if c.IsSet(flagDebug) {
		cfg.Audit.Debug = c.Bool(flagDebug)
		if cfg.Audit.Debug && !c.IsSet(flagLogLevel) {
			cfg.Log.Level = "debug"
		}
	}
	if c.IsSet(flagAuditDir) {
		cfg.Audit.Dir = c.String(flagAuditDir)
	}
	if c.IsSet(flagKernelSize) {
		cfg.Mask.KernelSize = c.Int(flagKernelSize)
	}
	if c.IsSet(flagFormat) {
		cfg.Output.Format = c.String(flagFormat)
	}
	if c.IsSet(flagQuality) {
		cfg.Output.Quality = c.Int(flagQuality)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}
	if c.IsSet(flagLogFile) {
		cfg.Log.File = c.String(flagLogFile)
	}
	if c.IsSet(flagLogJSON) {
		cfg.Log.JSON = c.Bool(flagLogJSON)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v: %w", err, types.ErrInvalidInput)
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if path := c.String(flagWriteConfig); path != "" {
		if err := cfg.SaveToFile(path); err != nil {
			return fmt.Errorf("%v: %w", err, types.ErrIOFailure)
		}
		fmt.Fprintln(c.App.Writer, "configuration written to", path)
		return nil
	}

	input := c.String(flagImage)
	if input == "" {
		return fmt.Errorf("--%s is required: %w", flagImage, types.ErrInvalidInput)
	}

	logger, _, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	defer func() { _ = logger.Sync() }()

	nb, err := classifier.LoadNaiveBayesClass(cfg.Classifier.Path, cfg.Classifier.PlantClass)
	if err != nil {
		return err
	}
	logger.Debug("classifier loaded",
		zap.String("path", cfg.Classifier.Path),
		zap.Strings("classes", nb.Classes()))

	splitter, err := plantsplit.NewWithClassifier(nb, cfg.Processing(),
		plantsplit.WithLogger(logger),
		processing.WithImageIO(imageio.NewWithConfig(cfg.ImageIO())))
	if err != nil {
		return err
	}

	images, err := inputImages(input, c.Bool(flagRecursive))
	if err != nil {
		return err
	}
	return splitAll(splitter, images, cfg.Workers, logger)
}

// inputImages resolves the --image argument to a list of files
func inputImages(input string, recursive bool) ([]string, error) {
	switch {
	case utils.DirExists(input):
		images, err := utils.ListImageFiles(input, recursive)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, types.ErrIOFailure)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("no images in %s: %w", input, types.ErrInvalidInput)
		}
		return images, nil
	case utils.FileExists(input):
		return []string{input}, nil
	default:
		return nil, fmt.Errorf("input %s does not exist: %w", input, types.ErrIOFailure)
	}
}

// splitAll processes every image on a bounded pool. Images are
// independent; every failure is reported and the others still run.
func splitAll(splitter *plantsplit.Splitter, images []string, workers int, logger *zap.Logger) error {
	start := time.Now()

	var (
		mu      sync.Mutex
		errs    error
		plants  int
		written []string
	)

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for _, path := range images {
		g.Go(func() error {
			res, err := splitter.SplitFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("image failed", zap.String("image", path), zap.Error(err))
				errs = multierr.Append(errs, err)
				return nil
			}
			plants += len(res.Plants)
			for _, p := range res.Plants {
				written = append(written, p.ImagePath, p.MaskPath)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := len(multierr.Errors(errs))
	logger.Info("done",
		zap.Int("images", len(images)),
		zap.Int("failed", failed),
		zap.Int("plants", plants),
		zap.String("written", utils.FormatFileSize(utils.TotalSize(written...))),
		zap.Duration("took", time.Since(start)))

	if errs != nil && len(images) > 1 {
		return fmt.Errorf("%d of %d images failed: %w", failed, len(images), errs)
	}
	return errs
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return exitInvalidInput
	case errors.Is(err, types.ErrIOFailure):
		return exitIOFailure
	case errors.Is(err, types.ErrClassificationFailure):
		return exitClassification
	default:
		return exitFailure
	}
}
