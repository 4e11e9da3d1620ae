package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// stubDetector returns a fixed point of interest
type stubDetector struct {
	x, y  int
	err   error
	calls int
}

func (d *stubDetector) PointOfInterest(img image.Image) (int, int, error) {
	d.calls++
	return d.x, d.y, d.err
}

func failingDetector() *stubDetector {
	return &stubDetector{err: errors.New("no features")}
}

// solidImage creates a w x h image of one color
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// splitImage paints the left half red and the right half blue
func splitImage(w, h int) *image.NRGBA {
	img := solidImage(w, h, red)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetNRGBA(x, y, blue)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func size(img image.Image) (int, int) {
	return img.Bounds().Dx(), img.Bounds().Dy()
}

// dominant reports which of red or blue a pixel is closer to
func dominant(img image.Image, x, y int) string {
	r, _, b, _ := img.At(x, y).RGBA()
	if r > b {
		return "red"
	}
	return "blue"
}

func colorNRGBA(r, g, b, a uint8) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
