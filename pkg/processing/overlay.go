package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/plant-splitter/pkg/types"
)

// CreateDebugOverlay draws the crop box of every plant over a copy of img,
// with a tick per index along the top edge so the left-to-right order can
// be read off the image.
func CreateDebugOverlay(img image.Image, plants []types.Plant) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	gold := color.NRGBA{255, 204, 0, 255} // crop box
	red := color.NRGBA{255, 0, 0, 255}    // box centre
	stroke := int(math.Max(1, 0.004*float64(min(w, h))))
	cross := int(math.Max(3, 0.01*float64(min(w, h))))

	for _, plant := range plants {
		r := plant.Object.Box.Rect()
		drawBox(nrgba, r, gold, stroke)

		cx, cy := (r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2
		drawHLine(nrgba, cy, cx-cross, cx+cross, red)
		drawVLine(nrgba, cx, cy-cross, cy+cross, red)

		// index ticks: plant i gets i+1 short marks above its box
		for k := 0; k <= plant.Index; k++ {
			x := r.Min.X + 2*k
			drawVLine(nrgba, x, r.Min.Y-cross, r.Min.Y, red)
		}
	}
	return nrgba
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
