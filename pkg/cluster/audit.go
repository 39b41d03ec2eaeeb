package cluster

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/menta2k/plant-splitter/pkg/types"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var gridColor = color.NRGBA{R: 255, G: 255, B: 255, A: 160}

// Palette returns n well separated colours
func Palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		c := colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.85, 0.95)
		out[i] = c.Clamped()
	}
	return out
}

// RenderAudit draws a darkened copy of img with every cluster's contours
// filled in its own colour, the grid lines and the cluster names.
func RenderAudit(img image.Image, contours []types.Contour, clusters []types.Cluster, rows, cols int) image.Image {
	base := imaging.AdjustBrightness(img, -35)
	dc := gg.NewContextForImage(base)
	w, h := float64(dc.Width()), float64(dc.Height())

	palette := Palette(len(clusters))
	for k, cl := range clusters {
		r, g, b, _ := palette[k].RGBA()
		for _, i := range cl.Objects {
			if i < 0 || i >= len(contours) || len(contours[i]) == 0 {
				continue
			}
			tracePolygon(dc, contours[i])
			dc.SetRGBA255(int(r>>8), int(g>>8), int(b>>8), 110)
			dc.FillPreserve()
			dc.SetColor(palette[k])
			dc.SetLineWidth(2)
			dc.Stroke()
		}
	}

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for c := 1; c < cols; c++ {
		x := w * float64(c) / float64(cols)
		dc.DrawLine(x, 0, x, h)
		dc.Stroke()
	}
	for r := 1; r < rows; r++ {
		y := h * float64(r) / float64(rows)
		dc.DrawLine(0, y, w, y)
		dc.Stroke()
	}

	size := max(10, min(w, h)/30)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	dc.SetColor(color.White)
	for _, cl := range clusters {
		if len(cl.Objects) == 0 || cl.Objects[0] >= len(contours) {
			continue
		}
		x, y := Centroid(contours[cl.Objects[0]])
		dc.DrawStringAnchored(cl.Name, x, y, 0.5, 0.5)
	}
	return dc.Image()
}

// tracePolygon adds the contour as a closed path through pixel centres.
// Contour points are relative to the image origin.
func tracePolygon(dc *gg.Context, c types.Contour) {
	dc.NewSubPath()
	for i, p := range c {
		x, y := float64(p.X)+0.5, float64(p.Y)+0.5
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	dc.ClosePath()
}
