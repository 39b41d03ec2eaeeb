// Package plantsplit splits a photo of several plants into one cropped
// image and one mask per plant, numbered from left to right.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		plantsplit "github.com/menta2k/plant-splitter"
//	)
//
//	func main() {
//		splitter, err := plantsplit.New("naive_bayes_pdfs.txt", 100, "./plants")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := splitter.SplitFile("tray.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, p := range res.Plants {
//			fmt.Printf("plant %d at x=%d: %s\n", p.Index, p.Object.Box.X, p.ImagePath)
//		}
//	}
//
// The pipeline is made of these packages:
//
//  1. Classifier (pkg/classifier): labels every pixel as plant or background
//  2. Mask (pkg/mask): turns labels into a smoothed binary mask
//  3. Contour (pkg/contour): traces object borders, filters them by size and
//     renders the survivors into a clean mask
//  4. Cluster (pkg/cluster): groups objects on a grid and draws the audit image
//  5. Cropper (pkg/cropper): cuts each object out of the image and the mask
//  6. Indexer (pkg/indexer): numbers plants by their left edge and writes them
//
// Processing (pkg/processing) runs the stages in that order. A run either
// writes every plant or none of them; an image without plants is not an error.
package plantsplit

import (
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/plant-splitter/pkg/classifier"
	"github.com/menta2k/plant-splitter/pkg/processing"
)

// Version of the plant splitter library
const Version = "1.0.0"

// Splitter provides a high-level interface to the splitting pipeline
type Splitter struct {
	processor *processing.Processor
}

// New creates a Splitter using the naive Bayes PDF file at classifierPath,
// keeping objects with more than minSize boundary points and writing
// plants to outDir. Other settings take their defaults.
func New(classifierPath string, minSize int, outDir string) (*Splitter, error) {
	nb, err := classifier.LoadNaiveBayes(classifierPath)
	if err != nil {
		return nil, err
	}
	config := processing.DefaultConfig()
	config.MinSize = minSize
	config.OutDir = outDir
	return NewWithClassifier(nb, config)
}

// NewWithClassifier creates a Splitter with a custom classifier and configuration
func NewWithClassifier(c classifier.Classifier, config processing.Config, opts ...processing.Option) (*Splitter, error) {
	p, err := processing.NewProcessor(c, config, opts...)
	if err != nil {
		return nil, err
	}
	return &Splitter{processor: p}, nil
}

// WithLogger returns a processing option that logs through logger
func WithLogger(logger *zap.Logger) processing.Option {
	return processing.WithLogger(logger)
}

// SplitFile splits the image at path and writes the plants to disk
func (s *Splitter) SplitFile(path string) (*processing.Result, error) {
	return s.processor.Process(path)
}

// Split splits an in-memory image without writing anything
func (s *Splitter) Split(img image.Image) (*processing.Result, error) {
	return s.processor.Split(img)
}

// Config returns the effective pipeline configuration
func (s *Splitter) Config() processing.Config {
	return s.processor.Config()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
