package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// keyField is one row of the ordered default table. token returns the
// rendered value and whether the field differs from its default.
type keyField struct {
	name  string
	token func(s *TransformSpec) (string, bool)
}

// keyFields fixes the order of parameters inside a derivative key.
// New fields go at the end; inserting would re-key every stored derivative.
var keyFields = []keyField{
	{"w", func(s *TransformSpec) (string, bool) { return positiveInt(s.Width) }},
	{"h", func(s *TransformSpec) (string, bool) { return positiveInt(s.Height) }},
	{"q", func(s *TransformSpec) (string, bool) {
		return strconv.Itoa(s.Quality), s.Quality != DefaultQuality
	}},
	{"crop_width", cropField(func(r *CropRect) int { return r.Width })},
	{"crop_height", cropField(func(r *CropRect) int { return r.Height })},
	{"crop_y", cropField(func(r *CropRect) int { return r.Y })},
	{"crop_x", cropField(func(r *CropRect) int { return r.X })},
	{"frame_bg_color", func(s *TransformSpec) (string, bool) {
		return s.FrameBackgroundColor, s.FrameBackgroundColor != DefaultFrameBackgroundColor
	}},
	{"gravity", func(s *TransformSpec) (string, bool) {
		return string(s.Gravity), s.Gravity != DefaultGravity
	}},
	{"preserve_ratio", func(s *TransformSpec) (string, bool) {
		return pythonBool(s.PreserveRatio), !s.PreserveRatio
	}},
	{"premultiplied_alpha", func(s *TransformSpec) (string, bool) {
		return pythonBool(s.PremultipliedAlpha), s.PremultipliedAlpha
	}},
	{"filters", func(s *TransformSpec) (string, bool) {
		if len(s.Filters) == 0 {
			return "", false
		}
		b, err := json.Marshal(s.Filters)
		if err != nil {
			return "", false
		}
		return string(b), true
	}},
}

// DerivativeKey maps a source path and a canonical spec to the object key
// of the derivative. Only non-default fields take part, so two specs that
// differ in a default-valued field share a key.
func DerivativeKey(path string, spec *TransformSpec) string {
	params := make([]string, 0, len(keyFields))
	for _, f := range keyFields {
		if value, ok := f.token(spec); ok {
			params = append(params, f.name+"__"+value)
		}
	}

	var b strings.Builder
	b.WriteString(DerivativePrefix)
	b.WriteString(path)
	b.WriteString("--")
	b.WriteString(string(spec.Command))
	b.WriteString("--")
	b.WriteString(strings.Join(params, "--"))
	b.WriteString(".")
	b.WriteString(spec.Extension())
	return b.String()
}

func positiveInt(v int) (string, bool) {
	if v <= 0 {
		return "", false
	}
	return strconv.Itoa(v), true
}

func cropField(get func(r *CropRect) int) func(s *TransformSpec) (string, bool) {
	return func(s *TransformSpec) (string, bool) {
		if s.Crop == nil {
			return "", false
		}
		return strconv.Itoa(get(s.Crop)), true
	}
}

// pythonBool keeps the capitalised spelling used by keys already in storage
func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
