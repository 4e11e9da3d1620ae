package service

import (
	"fmt"
	"image"

	"github.com/muesli/smartcrop"
	"github.com/muesli/smartcrop/nfnt"
)

// SmartcropDetector finds the point of interest with muesli/smartcrop. It
// asks for the best square window, so the point moves along the long axis
// and stays centered on the short one.
type SmartcropDetector struct {
	analyzer smartcrop.Analyzer
}

// NewSmartcropDetector creates a detector backed by the nfnt resizer
func NewSmartcropDetector() *SmartcropDetector {
	return &SmartcropDetector{
		analyzer: smartcrop.NewAnalyzer(nfnt.NewDefaultResizer()),
	}
}

// PointOfInterest returns the center of the best crop window
func (d *SmartcropDetector) PointOfInterest(img image.Image) (int, int, error) {
	bounds := img.Bounds()
	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}
	if side <= 0 {
		return 0, 0, fmt.Errorf("empty image")
	}

	crop, err := d.analyzer.FindBestCrop(img, side, side)
	if err != nil {
		return 0, 0, fmt.Errorf("smartcrop failed: %w", err)
	}

	x := (crop.Min.X+crop.Max.X)/2 - bounds.Min.X
	y := (crop.Min.Y+crop.Max.Y)/2 - bounds.Min.Y
	return x, y, nil
}
