// Package indexer numbers cropped plants from left to right and writes
// them to disk as one unit.
package indexer

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/pkg/imageio"
	"github.com/menta2k/plant-splitter/pkg/types"
)

// MaskFormat is the encoding of every written mask
const MaskFormat = "png"

// Order pairs objects with their crops, sorts them by the left edge of the
// bounding box and assigns indices 0..n-1. Equal left edges keep
// extraction order.
func Order(objects []types.PlantObject, pairs []types.CroppedPair) ([]types.Plant, error) {
	if len(objects) != len(pairs) {
		return nil, fmt.Errorf("%d objects but %d crops: %w", len(objects), len(pairs), types.ErrInvalidInput)
	}
	plants := make([]types.Plant, len(objects))
	for i := range objects {
		plants[i] = types.Plant{Object: objects[i], Pair: pairs[i]}
	}
	sort.SliceStable(plants, func(i, j int) bool {
		a, b := plants[i].Object, plants[j].Object
		if a.Box.X != b.Box.X {
			return a.Box.X < b.Box.X
		}
		return a.Order < b.Order
	})
	for i := range plants {
		plants[i].Index = i
	}
	return plants, nil
}

// ImageName returns <base>_<i>_p<i>.<ext>
func ImageName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_%d_p%d.%s", base, index, index, ext)
}

// MaskName returns <base>_<i>_p<i>_mask.png
func MaskName(base string, index int) string {
	return fmt.Sprintf("%s_%d_p%d_mask.%s", base, index, index, MaskFormat)
}

// Writer persists indexed plants
type Writer struct {
	codec  *imageio.IO
	format string
	logger *zap.Logger
}

// NewWriter creates a Writer encoding plant images as format (png, jpg or webp)
func NewWriter(codec *imageio.IO, format string, logger *zap.Logger) *Writer {
	if codec == nil {
		codec = imageio.New()
	}
	if format == "" {
		format = "png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{codec: codec, format: format, logger: logger}
}

type pending struct {
	tmp  string
	dest string
	// backup holds the file previously at dest while the set is committed
	backup string
}

// WriteAll writes the image and mask of every plant into outDir. Files are
// staged as temporaries and only renamed into place once all of them are
// encoded. Files already at the destinations are moved aside first and put
// back if the commit fails, so a failure leaves outDir as it was. The paths
// are recorded on the returned plants.
func (w *Writer) WriteAll(outDir, base string, plants []types.Plant) (written []types.Plant, err error) {
	if len(plants) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %v: %w", err, types.ErrIOFailure)
	}

	var staged []pending
	defer func() {
		if err == nil {
			return
		}
		for _, p := range staged {
			if rmErr := os.Remove(p.tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierr.Append(err, rmErr)
			}
		}
	}()

	out := make([]types.Plant, len(plants))
	for i, plant := range plants {
		if plant.Pair.Image == nil || plant.Pair.Mask == nil {
			return nil, fmt.Errorf("plant %d has no crop: %w", plant.Index, types.ErrInvalidInput)
		}
		imgPath := filepath.Join(outDir, ImageName(base, plant.Index, w.format))
		maskPath := filepath.Join(outDir, MaskName(base, plant.Index))

		tmp, err := w.stage(outDir, plant.Pair.Image, w.format)
		if err != nil {
			return nil, fmt.Errorf("plant %d image: %w", plant.Index, err)
		}
		staged = append(staged, pending{tmp: tmp, dest: imgPath})

		tmp, err = w.stage(outDir, plant.Pair.Mask, MaskFormat)
		if err != nil {
			return nil, fmt.Errorf("plant %d mask: %w", plant.Index, err)
		}
		staged = append(staged, pending{tmp: tmp, dest: maskPath})

		plant.ImagePath, plant.MaskPath = imgPath, maskPath
		out[i] = plant
	}

	backups, err := commit(outDir, staged)
	if err != nil {
		return nil, err
	}
	for _, b := range backups {
		if rmErr := os.Remove(b); rmErr != nil {
			w.logger.Warn("previous output not removed", zap.String("path", b), zap.Error(rmErr))
		}
	}

	for _, plant := range out {
		w.logger.Info("plant written",
			zap.Int("index", plant.Index),
			zap.Int("x", plant.Object.Box.X),
			zap.String("image", plant.ImagePath),
			zap.String("mask", plant.MaskPath))
	}
	return out, nil
}

// commit renames every staged file into place. Regular files already at a
// destination are moved to hidden backups first; on failure the new files
// are removed and the backups restored. On success the backup paths are
// returned for the caller to delete.
func commit(dir string, staged []pending) (backups []string, err error) {
	var moved int
	defer func() {
		if err == nil {
			return
		}
		for _, p := range staged[:moved] {
			if rmErr := os.Remove(p.dest); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierr.Append(err, rmErr)
			}
		}
		for _, p := range staged {
			if p.backup == "" {
				continue
			}
			if mvErr := os.Rename(p.backup, p.dest); mvErr != nil {
				err = multierr.Append(err, mvErr)
			}
		}
	}()

	for i := range staged {
		info, statErr := os.Lstat(staged[i].dest)
		if statErr != nil || !info.Mode().IsRegular() {
			continue
		}
		backup, err := reserve(dir, ".plant-backup-*")
		if err != nil {
			return nil, err
		}
		if err := os.Rename(staged[i].dest, backup); err != nil {
			os.Remove(backup)
			return nil, fmt.Errorf("move aside %s: %v: %w", staged[i].dest, err, types.ErrIOFailure)
		}
		staged[i].backup = backup
	}

	for _, p := range staged {
		if err := os.Rename(p.tmp, p.dest); err != nil {
			return nil, fmt.Errorf("rename %s: %v: %w", p.dest, err, types.ErrIOFailure)
		}
		moved++
	}

	for _, p := range staged {
		if p.backup != "" {
			backups = append(backups, p.backup)
		}
	}
	return backups, nil
}

// reserve creates an empty file named after pattern in dir and returns its path
func reserve(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %v: %w", err, types.ErrIOFailure)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close %s: %v: %w", name, err, types.ErrIOFailure)
	}
	return name, nil
}

// stage encodes img into a hidden temporary file in dir
func (w *Writer) stage(dir string, img image.Image, format string) (string, error) {
	if err := imageio.Validate(img); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".plant-*."+format)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %v: %w", err, types.ErrIOFailure)
	}
	if err := w.codec.Encode(f, img, format); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %v: %w", f.Name(), err, types.ErrIOFailure)
	}
	return f.Name(), nil
}
