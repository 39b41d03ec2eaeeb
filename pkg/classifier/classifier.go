// Package classifier is the boundary to per-pixel plant/background
// classification. The pipeline only sees the Classifier interface.
package classifier

import (
	"fmt"
	"image"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// Classifier labels every pixel of img as plant or background.
// The returned map must have the same extent as img.
type Classifier interface {
	Classify(img image.Image) (*types.LabelMap, error)
}

// Func adapts a plain function to the Classifier interface
type Func func(img image.Image) (*types.LabelMap, error)

// Classify calls f(img)
func (f Func) Classify(img image.Image) (*types.LabelMap, error) {
	return f(img)
}

// Run invokes c and checks that the result is usable for img.
// Anything unusable is reported as ErrClassificationFailure.
func Run(c Classifier, img image.Image) (*types.LabelMap, error) {
	if c == nil {
		return nil, fmt.Errorf("no classifier configured: %w", types.ErrClassificationFailure)
	}
	labels, err := c.Classify(img)
	if err != nil {
		return nil, fmt.Errorf("classifier: %v: %w", err, types.ErrClassificationFailure)
	}
	if labels.Empty() {
		return nil, fmt.Errorf("classifier returned an empty label map: %w", types.ErrClassificationFailure)
	}
	b := img.Bounds()
	if labels.Width != b.Dx() || labels.Height != b.Dy() {
		return nil, fmt.Errorf("label map is %dx%d, image is %dx%d: %w",
			labels.Width, labels.Height, b.Dx(), b.Dy(), types.ErrClassificationFailure)
	}
	return labels, nil
}
