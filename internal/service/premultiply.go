package service

import (
	"image"

	"golang.org/x/image/draw"
)

// premultiply multiplies R, G and B of every pixel by alpha/255, truncating.
// The result is stored as NRGBA so encoders write the scaled values as is.
func premultiply(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	for i := 0; i < len(dst.Pix); i += 4 {
		alpha := float64(dst.Pix[i+3]) / 255.0
		dst.Pix[i] = uint8(float64(dst.Pix[i]) * alpha)
		dst.Pix[i+1] = uint8(float64(dst.Pix[i+1]) * alpha)
		dst.Pix[i+2] = uint8(float64(dst.Pix[i+2]) * alpha)
	}
	return dst
}
