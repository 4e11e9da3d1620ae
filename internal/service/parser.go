package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"prism/internal/models"
)

const (
	maxDimension              = 10000
	maxPremultipliedDimension = 4000
)

// ParseRequest turns a raw request into a fully defaulted TransformSpec.
// It does no I/O; every failure is a models.ValidationError.
func ParseRequest(req models.RawRequest) (*models.TransformSpec, error) {
	q := req.Query

	command, err := resolveCommand(q)
	if err != nil {
		return nil, err
	}

	premultiplied := flag(q, "premultiplied", false)

	width, height, err := parseDimensions(q, command, premultiplied)
	if err != nil {
		return nil, err
	}

	if flag(q, "retina", false) && req.DPR != "" {
		if dpr, err := strconv.ParseFloat(req.DPR, 64); err == nil {
			width, height = makeRetina(width, height, dpr)
		}
	}

	quality := models.DefaultQuality
	if raw := q.Get("quality"); raw != "" {
		quality, err = strconv.Atoi(raw)
		if err != nil || quality < 1 || quality > 100 {
			return nil, models.ValidationError{Field: "quality", Message: "quality must be an integer between 1 and 100"}
		}
	}

	gravity, err := parseGravity(q)
	if err != nil {
		return nil, err
	}

	frameColor := models.DefaultFrameBackgroundColor
	if q.Has("frame_bg_color") {
		frameColor = q.Get("frame_bg_color")
		if _, err := parseHexColor(frameColor, 1); err != nil {
			return nil, models.ValidationError{Field: "frame_bg_color", Message: err.Error()}
		}
	}

	crop, err := parseCrop(q)
	if err != nil {
		return nil, err
	}

	filters, err := decodeFilters(q.Get("filters"))
	if err != nil {
		return nil, err
	}

	out, err := outputFormat(req.Extension(), command, q, req.Accept)
	if err != nil {
		return nil, err
	}

	spec := &models.TransformSpec{
		Command:              command,
		Width:                deref(width),
		Height:               deref(height),
		PreserveRatio:        flag(q, "preserve_ratio", true),
		Gravity:              gravity,
		Crop:                 crop,
		FrameBackgroundColor: frameColor,
		Opacity:              opacityFor(command, out),
		PremultipliedAlpha:   premultiplied,
		Quality:              quality,
		OutputFormat:         out,
		Filters:              filters,
		WithInfo:             flag(q, "with_info", false),
		NoRedirect:           flag(q, "no_redirect", false),
		Debug:                flag(q, "debug", false),
		Force:                flag(q, "force", false),
	}
	return spec, nil
}

// commandTable maps every accepted cmd value to its command
var commandTable = map[string]models.Command{
	string(models.CommandResize):         models.CommandResize,
	string(models.CommandResizeThenCrop): models.CommandResizeThenCrop,
	string(models.CommandResizeThenFit):  models.CommandResizeThenFit,
	string(models.CommandInfo):           models.CommandInfo,
	string(models.CommandSmartCrop):      models.CommandSmartCrop,
}

func resolveCommand(q url.Values) (models.Command, error) {
	command := models.CommandResize
	if q.Has("cmd") {
		c, ok := commandTable[q.Get("cmd")]
		if !ok {
			return "", models.ValidationError{Field: "cmd", Message: fmt.Sprintf("unknown command '%s'", q.Get("cmd"))}
		}
		command = c
	}

	if raw := q.Get("resize_then_crop"); raw != "" {
		force, err := strconv.Atoi(raw)
		if err != nil {
			return "", models.ValidationError{Field: "resize_then_crop", Message: "must be an integer"}
		}
		if force != 0 {
			command = models.CommandResizeThenCrop
		}
	}
	return command, nil
}

// parseDimensions reads w/width and h/height. Absent sides are nil.
func parseDimensions(q url.Values, command models.Command, premultiplied bool) (width, height *int, err error) {
	limit := maxDimension
	if premultiplied {
		limit = maxPremultipliedDimension
	}

	width, err = dimension(q, "w", "width", limit)
	if err != nil {
		return nil, nil, err
	}
	height, err = dimension(q, "h", "height", limit)
	if err != nil {
		return nil, nil, err
	}

	switch command {
	case models.CommandResize:
		if width == nil && height == nil {
			return nil, nil, models.ValidationError{Field: "w", Message: "width or height is required"}
		}
	case models.CommandResizeThenCrop, models.CommandResizeThenFit, models.CommandSmartCrop:
		if width == nil || height == nil {
			return nil, nil, models.ValidationError{Field: "w", Message: "width and height are required"}
		}
	}
	return width, height, nil
}

func dimension(q url.Values, short, long string, limit int) (*int, error) {
	raw := q.Get(long)
	if q.Has(short) {
		raw = q.Get(short)
	}
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.ValidationError{Field: short, Message: "width or height is not an integer"}
	}
	if v <= 0 {
		return nil, models.ValidationError{Field: short, Message: "width and height must be positive"}
	}
	if v >= limit {
		return nil, models.ValidationError{Field: short, Message: fmt.Sprintf("%s should be < %d", long, limit)}
	}
	return &v, nil
}

// makeRetina scales the present sides by dpr, truncating
func makeRetina(width, height *int, dpr float64) (*int, *int) {
	scale := func(v *int) *int {
		if v == nil {
			return nil
		}
		scaled := int(dpr * float64(*v))
		return &scaled
	}
	return scale(width), scale(height)
}

// outputFormat picks the encoding: explicit out, then webp when the client
// accepts it, then the source extension. resize_then_fit defaults to png.
func outputFormat(pathExt string, command models.Command, q url.Values, accept string) (string, error) {
	if out := strings.ToLower(q.Get("out")); out != "" {
		for _, f := range models.OutputFormats {
			if out == f {
				return out, nil
			}
		}
		return "", models.ValidationError{
			Field:   "out",
			Message: fmt.Sprintf("image format should be jpg, png or webp: %s", out),
		}
	}

	if strings.Contains(accept, "image/webp") {
		return "webp", nil
	}

	if command == models.CommandResizeThenFit {
		return "png", nil
	}
	return strings.TrimPrefix(strings.ToLower(pathExt), "."), nil
}

// opacityFor returns the frame opacity. An explicit opacity parameter is
// accepted but has never been applied, and existing derivatives depend on that.
func opacityFor(command models.Command, out string) int {
	if command == models.CommandResizeThenCrop || out == "jpg" || out == "jpeg" {
		return 0
	}
	return 100
}

func parseGravity(q url.Values) (models.Gravity, error) {
	if !q.Has("gravity") {
		return models.DefaultGravity, nil
	}
	switch g := models.Gravity(q.Get("gravity")); g {
	case "", models.GravityCenter, models.GravityTopLeft, models.GravitySmart:
		return g, nil
	default:
		return "", models.ValidationError{Field: "gravity", Message: "gravity must be one of center, top_left, smart"}
	}
}

func parseCrop(q url.Values) (*models.CropRect, error) {
	names := []string{"crop_x", "crop_y", "crop_width", "crop_height"}
	values := make([]int, len(names))
	present := 0
	for i, name := range names {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, models.ValidationError{Field: name, Message: "must be an integer"}
		}
		if v < 0 {
			return nil, models.ValidationError{Field: "crop", Message: name + " must not be negative"}
		}
		values[i] = v
		present++
	}

	switch present {
	case 0:
		return nil, nil
	case len(names):
		return &models.CropRect{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
	default:
		return nil, models.ValidationError{Field: "crop", Message: "crop_x, crop_y, crop_width and crop_height must be given together"}
	}
}

// decodeFilters parses the JSON filter list and checks every entry
func decodeFilters(raw string) ([]models.Filter, error) {
	if raw == "" {
		return nil, nil
	}

	var filters []models.Filter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, models.ValidationError{Field: "filters", Message: "couldn't decode json: " + err.Error()}
	}
	for _, f := range filters {
		if err := validateFilter(f); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

// makeBool treats "false" and "0" as false and anything else as true
func makeBool(s string) bool {
	switch strings.ToLower(s) {
	case "false", "0":
		return false
	default:
		return true
	}
}

func flag(q url.Values, name string, def bool) bool {
	if !q.Has(name) {
		return def
	}
	return makeBool(q.Get(name))
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
