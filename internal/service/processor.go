package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"unicode/utf8"

	"prism/internal/models"
	"prism/pkg/logger"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

type commandFunc func(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error)

// ProcessorServiceImpl implements the ProcessorService interface
type ProcessorServiceImpl struct {
	detector PointOfInterestDetector
	commands map[models.Command]commandFunc
}

// NewProcessorService creates a new image processor service
func NewProcessorService(detector PointOfInterestDetector) ProcessorService {
	p := &ProcessorServiceImpl{detector: detector}
	p.commands = map[models.Command]commandFunc{
		models.CommandResize:         p.resize,
		models.CommandResizeThenCrop: p.resizeThenCrop,
		models.CommandResizeThenFit:  p.resizeThenFit,
		models.CommandSmartCrop:      p.smartCrop,
	}
	return p
}

// Decode decodes image data and applies the EXIF orientation
func (p *ProcessorServiceImpl) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, models.EmptyOriginalError{}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, models.InvalidImageError{Reason: err.Error()}
	}
	return img, nil
}

// Transform runs the command and then the filters
func (p *ProcessorServiceImpl) Transform(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error) {
	run, ok := p.commands[spec.Command]
	if !ok {
		return nil, models.ValidationError{Field: "cmd", Message: fmt.Sprintf("command '%s' is not a transform", spec.Command)}
	}

	bounds := img.Bounds()
	logger.DebugWithContext(ctx, "Transforming image",
		zap.String("command", string(spec.Command)),
		zap.Int("source_width", bounds.Dx()),
		zap.Int("source_height", bounds.Dy()),
		zap.Int("target_width", spec.Width),
		zap.Int("target_height", spec.Height),
		zap.String("gravity", string(spec.Gravity)))

	out, err := run(ctx, img, spec)
	if err != nil {
		return nil, err
	}

	if len(spec.Filters) > 0 {
		out, err = applyFilters(out, spec.Filters)
		if err != nil {
			return nil, err
		}
	}

	logger.DebugWithContext(ctx, "Image transformed",
		zap.Int("width", out.Bounds().Dx()),
		zap.Int("height", out.Bounds().Dy()))
	return out, nil
}

// Encode serializes img. Premultiplication only applies to PNG.
func (p *ProcessorServiceImpl) Encode(img image.Image, format string, quality int, premultiplied bool) ([]byte, error) {
	if premultiplied {
		if format == "png" {
			img = premultiply(img)
		} else {
			logger.Warn("Premultiplied alpha requires png output, skipping",
				zap.String("format", format))
		}
	}

	var buf bytes.Buffer
	var err error

	switch format {
	case "jpg", "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// Info extracts metadata from an original
func (p *ProcessorServiceImpl) Info(data []byte) (*models.ImageInfo, error) {
	if len(data) == 0 {
		return nil, models.EmptyOriginalError{}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.InvalidImageError{Reason: err.Error()}
	}

	img, err := p.Decode(data)
	if err != nil {
		return nil, err
	}

	alpha := hasAlpha(cfg.ColorModel)
	if format == "png" {
		alpha = pngHasAlpha(data)
	}

	bounds := img.Bounds()
	return &models.ImageInfo{
		ImgType:      format,
		AlphaChannel: alpha,
		Exif:         readExif(data),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
	}, nil
}

// Commands

// resize scales to the requested box. With both sides and preserve_ratio
// the fitted image is centered on a frame of exactly that size.
func (p *ProcessorServiceImpl) resize(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error) {
	resized, err := p.geometry(img, spec)
	if err != nil {
		return nil, err
	}
	if spec.HasBothDimensions() && spec.PreserveRatio && !spec.Crop.Usable() {
		return p.frame(resized, spec)
	}
	return resized, nil
}

// resizeThenFit always letterboxes onto the requested box
func (p *ProcessorServiceImpl) resizeThenFit(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error) {
	if !spec.HasBothDimensions() {
		return nil, models.ValidationError{Field: "w", Message: "width and height are required"}
	}
	resized, err := p.geometry(img, spec)
	if err != nil {
		return nil, err
	}
	return p.frame(resized, spec)
}

// resizeThenCrop scales to cover the box and crops it out by gravity. The
// window is chosen on the scaled size but cut from the source, so only the
// kept region is ever resampled.
func (p *ProcessorServiceImpl) resizeThenCrop(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error) {
	if !spec.HasBothDimensions() {
		return nil, models.ValidationError{Field: "w", Message: "width and height are required"}
	}

	w, h := spec.Width, spec.Height
	src := img.Bounds()
	srcW, srcH := src.Dx(), src.Dy()
	tw, th := coverSize(srcW, srcH, w, h)

	x, y := 0, 0
	switch spec.Gravity {
	case models.GravityCenter:
		x, y = centerOffset(tw, w), centerOffset(th, h)
	case models.GravitySmart:
		px, py, err := p.pointOfInterest(ctx, img)
		if err != nil {
			x, y = centerOffset(tw, w), centerOffset(th, h)
			break
		}
		sx := float64(px) * float64(tw) / float64(srcW)
		sy := float64(py) * float64(th) / float64(srcH)
		x = clamp(int(sx-float64(w)/2), 0, tw-w)
		y = clamp(int(sy-float64(h)/2), 0, th-h)
	}

	window := sourceWindow(x, y, minInt(w, tw), minInt(h, th), srcW, srcH, tw, th)

	logger.DebugWithContext(ctx, "Cropping source window",
		zap.Int("scaled_width", tw),
		zap.Int("scaled_height", th),
		zap.Int("x", x),
		zap.Int("y", y),
		zap.Stringer("window", window))

	return imaging.Resize(imaging.Crop(img, window.Add(src.Min)), w, h, imaging.Lanczos), nil
}

// coverSize is the size the source would be scaled to so that it covers
// w x h. Sources smaller on both sides keep imaging's rounding for a
// single-side resize.
func coverSize(srcW, srcH, w, h int) (int, int) {
	if srcH < h && srcW < w {
		nextH := float64(w) * float64(srcH) / float64(srcW)
		if nextH >= float64(h) {
			return w, atLeastOne(math.Floor(nextH + 0.5))
		}
		return atLeastOne(math.Floor(float64(h)*float64(srcW)/float64(srcH) + 0.5)), h
	}

	ratio := float64(srcW) / float64(srcH)
	tw, th := float64(w), float64(w)/ratio
	if th < float64(h) {
		tw, th = float64(h)*ratio, float64(h)
	}
	return atLeastOne(math.RoundToEven(tw)), atLeastOne(math.RoundToEven(th))
}

// sourceWindow maps a w x h window at (x, y) of the tw x th scaled image
// back to source pixels. The window is never empty.
func sourceWindow(x, y, w, h, srcW, srcH, tw, th int) image.Rectangle {
	fx := float64(srcW) / float64(tw)
	fy := float64(srcH) / float64(th)

	x0 := clamp(int(math.Floor(float64(x)*fx)), 0, srcW-1)
	y0 := clamp(int(math.Floor(float64(y)*fy)), 0, srcH-1)
	x1 := clamp(int(math.Ceil(float64(x+w)*fx)), x0+1, srcW)
	y1 := clamp(int(math.Ceil(float64(y+h)*fy)), y0+1, srcH)
	return image.Rect(x0, y0, x1, y1)
}

// smartCrop cuts a window centered on the point of interest without scaling
func (p *ProcessorServiceImpl) smartCrop(ctx context.Context, img image.Image, spec *models.TransformSpec) (image.Image, error) {
	if !spec.HasBothDimensions() {
		return nil, models.ValidationError{Field: "w", Message: "width and height are required"}
	}

	w, h := spec.Width, spec.Height
	src := img.Bounds()
	srcW, srcH := src.Dx(), src.Dy()

	px, py, err := p.pointOfInterest(ctx, img)
	if err != nil {
		px, py = srcW/2, srcH/2
	}

	left := clamp(int(float64(px)-float64(w)/2), 0, srcW-w)
	top := clamp(int(float64(py)-float64(h)/2), 0, srcH-h)
	right := minInt(left+w, srcW)
	bottom := minInt(top+h, srcH)

	return imaging.Crop(img, image.Rect(left, top, right, bottom).Add(src.Min)), nil
}

// Helper methods

// geometry applies the sizing shared by resize and resize_then_fit,
// without any frame
func (p *ProcessorServiceImpl) geometry(img image.Image, spec *models.TransformSpec) (image.Image, error) {
	w, h := spec.Width, spec.Height

	switch {
	case w > 0 && h > 0:
		if spec.Crop.Usable() {
			c := spec.Crop
			bounds := img.Bounds()
			rect := image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height).Add(bounds.Min).Intersect(bounds)
			if rect.Empty() {
				return nil, models.ValidationError{Field: "crop", Message: "crop rectangle lies outside the image"}
			}
			return imaging.Resize(imaging.Crop(img, rect), w, h, imaging.Lanczos), nil
		}
		if spec.PreserveRatio {
			return fitInside(img, w, h), nil
		}
		return imaging.Resize(img, w, h, imaging.Lanczos), nil
	case w > 0:
		return imaging.Resize(img, w, 0, imaging.Lanczos), nil
	case h > 0:
		return imaging.Resize(img, 0, h, imaging.Lanczos), nil
	default:
		return nil, models.ValidationError{Field: "w", Message: "width or height is required"}
	}
}

// frame centers img on a canvas of the requested size. The fill alpha is
// 1 - opacity/100, so opacity 100 leaves the frame transparent.
func (p *ProcessorServiceImpl) frame(img image.Image, spec *models.TransformSpec) (image.Image, error) {
	fill, err := parseHexColor(spec.FrameBackgroundColor, 1-float64(spec.Opacity)/100)
	if err != nil {
		return nil, models.ValidationError{Field: "frame_bg_color", Message: err.Error()}
	}

	w, h := spec.Width, spec.Height
	bounds := img.Bounds()
	canvas := imaging.New(w, h, fill)
	origin := image.Pt((w-bounds.Dx())/2, (h-bounds.Dy())/2)
	return imaging.Overlay(canvas, img, origin, 1.0), nil
}

func (p *ProcessorServiceImpl) pointOfInterest(ctx context.Context, img image.Image) (int, int, error) {
	if p.detector == nil {
		logger.WarnWithContext(ctx, "No point of interest detector, using center")
		return 0, 0, fmt.Errorf("no detector configured")
	}
	x, y, err := p.detector.PointOfInterest(img)
	if err != nil {
		logger.WarnWithContext(ctx, "Point of interest detection failed, using center",
			zap.Error(err))
		return 0, 0, err
	}
	return x, y, nil
}

// fitInside scales img to the largest size inside w x h, upscaling allowed
func fitInside(img image.Image, w, h int) *image.NRGBA {
	bounds := img.Bounds()
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	scale := math.Min(float64(w)/srcW, float64(h)/srcH)

	tw := clamp(int(math.Round(srcW*scale)), 1, w)
	th := clamp(int(math.Round(srcH*scale)), 1, h)
	return imaging.Resize(img, tw, th, imaging.Lanczos)
}

func centerOffset(have, want int) int {
	if have <= want {
		return 0
	}
	return (have - want) / 2
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}

// hasAlpha reports whether a color model can carry transparency
func hasAlpha(model color.Model) bool {
	switch model {
	case color.NRGBAModel, color.NRGBA64Model, color.RGBAModel, color.RGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	if palette, ok := model.(color.Palette); ok {
		for _, c := range palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// pngHasAlpha reads the IHDR color type and looks for a tRNS chunk.
// The standard decoder reports RGB images with the RGBA model.
func pngHasAlpha(data []byte) bool {
	const (
		signatureLen   = 8
		colorTypeIndex = signatureLen + 8 + 9
	)
	if len(data) <= colorTypeIndex {
		return false
	}
	switch data[colorTypeIndex] {
	case 4, 6:
		return true
	}

	for offset := signatureLen; offset+8 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunk := string(data[offset+4 : offset+8])
		switch chunk {
		case "tRNS":
			return true
		case "IDAT", "IEND":
			return false
		}
		offset += 12 + length
	}
	return false
}

// exifText collects EXIF tags whose value is text
type exifText map[string]string

func (m exifText) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() != tiff.StringVal {
		return nil
	}
	v, err := tag.StringVal()
	if err != nil || !utf8.ValidString(v) {
		return nil
	}
	m[string(name)] = v
	return nil
}

func readExif(data []byte) map[string]string {
	tags := exifText{}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return tags
	}
	_ = x.Walk(tags)
	return tags
}
