package classifier

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// PlantClass is the default name of the plant class in a PDF table
const PlantClass = "plant"

// pdfBins is the number of probabilities per channel row
const pdfBins = 256

var channels = []string{"hue", "saturation", "value"}

// NaiveBayes classifies pixels from per-class hue, saturation and value
// probability density tables. Values use the 8-bit OpenCV HSV scale
// (hue 0..179, saturation and value 0..255).
type NaiveBayes struct {
	plantClass string
	// pdfs[class][channel] holds pdfBins probabilities
	pdfs map[string]map[string][]float64
}

// LoadNaiveBayes reads a PDF table from path with PlantClass as the plant class
func LoadNaiveBayes(path string) (*NaiveBayes, error) {
	return LoadNaiveBayesClass(path, PlantClass)
}

// LoadNaiveBayesClass reads a PDF table from path, labelling plantClass as Plant
func LoadNaiveBayesClass(path, plantClass string) (*NaiveBayes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open classifier %s: %v: %w", path, err, types.ErrIOFailure)
	}
	defer f.Close()

	nb, err := ParseNaiveBayes(f, plantClass)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nb, nil
}

// ParseNaiveBayes reads a tab separated table with rows of the form
// "class<TAB>channel<TAB>p0 ... p255". An optional header row starting
// with "class" is skipped. plantClass names the class labelled Plant;
// every other class counts as background.
func ParseNaiveBayes(r io.Reader, plantClass string) (*NaiveBayes, error) {
	nb := &NaiveBayes{
		plantClass: plantClass,
		pdfs:       make(map[string]map[string][]float64),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if strings.EqualFold(fields[0], "class") {
			continue
		}
		if len(fields) != pdfBins+2 {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d: %w", line, pdfBins+2, len(fields), types.ErrInvalidInput)
		}
		class, channel := fields[0], strings.ToLower(fields[1])
		if !isChannel(channel) {
			return nil, fmt.Errorf("line %d: unknown channel %q: %w", line, fields[1], types.ErrInvalidInput)
		}
		values := make([]float64, pdfBins)
		for i, field := range fields[2:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("line %d: bad probability %q: %w", line, field, types.ErrInvalidInput)
			}
			values[i] = v
		}
		if floats.Min(values) < 0 || floats.Sum(values) <= 0 {
			return nil, fmt.Errorf("line %d: %s/%s is not a probability density: %w", line, class, channel, types.ErrInvalidInput)
		}
		if nb.pdfs[class] == nil {
			nb.pdfs[class] = make(map[string][]float64, len(channels))
		}
		nb.pdfs[class][channel] = values
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read classifier table: %v: %w", err, types.ErrIOFailure)
	}
	if err := nb.validate(); err != nil {
		return nil, err
	}
	return nb, nil
}

// Classes returns the class names, sorted
func (nb *NaiveBayes) Classes() []string {
	names := make([]string, 0, len(nb.pdfs))
	for name := range nb.pdfs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classify labels a pixel Plant when the plant likelihood is strictly
// greater than the likelihood of every other class.
func (nb *NaiveBayes) Classify(img image.Image) (*types.LabelMap, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image: %w", types.ErrInvalidInput)
	}
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	labels := types.NewLabelMap(w, h)

	plant := nb.pdfs[nb.plantClass]
	var others []map[string][]float64
	for _, name := range nb.Classes() {
		if name != nb.plantClass {
			others = append(others, nb.pdfs[name])
		}
	}

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			hh, ss, vv := HSV8(row[x*4], row[x*4+1], row[x*4+2])
			p := likelihood(plant, hh, ss, vv)
			best := math.Inf(-1)
			for _, other := range others {
				best = math.Max(best, likelihood(other, hh, ss, vv))
			}
			if p > best {
				labels.Labels[y*w+x] = types.LabelPlant
			}
		}
	}
	return labels, nil
}

// HSV8 converts an 8-bit RGB triple to the 8-bit OpenCV HSV scale
func HSV8(r, g, b uint8) (h, s, v int) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	hf, sf, vf := c.Hsv()
	h = int(math.Round(hf / 2))
	if h >= 180 {
		h -= 180
	}
	s = int(math.Round(sf * 255))
	v = int(math.Round(vf * 255))
	return h, s, v
}

func likelihood(pdf map[string][]float64, h, s, v int) float64 {
	return pdf["hue"][h] * pdf["saturation"][s] * pdf["value"][v]
}

func (nb *NaiveBayes) validate() error {
	if _, ok := nb.pdfs[nb.plantClass]; !ok {
		return fmt.Errorf("no %q class in classifier table: %w", nb.plantClass, types.ErrInvalidInput)
	}
	if len(nb.pdfs) < 2 {
		return fmt.Errorf("classifier table needs at least one class besides %q: %w", nb.plantClass, types.ErrInvalidInput)
	}
	for class, pdf := range nb.pdfs {
		for _, channel := range channels {
			if _, ok := pdf[channel]; !ok {
				return fmt.Errorf("class %q has no %s row: %w", class, channel, types.ErrInvalidInput)
			}
		}
	}
	return nil
}

func isChannel(name string) bool {
	for _, c := range channels {
		if c == name {
			return true
		}
	}
	return false
}
