package service

import (
	"encoding/json"
	"net/url"
	"testing"

	"prism/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRequest(path, query string) models.RawRequest {
	q, _ := url.ParseQuery(query)
	return models.RawRequest{Path: path, Query: q}
}

func intPtr(v int) *int {
	return &v
}

func TestParseRequest_Defaults(t *testing.T) {
	spec, err := ParseRequest(rawRequest("media/cat.jpg", "w=300"))

	require.NoError(t, err)
	assert.Equal(t, models.CommandResize, spec.Command)
	assert.Equal(t, 300, spec.Width)
	assert.Equal(t, 0, spec.Height)
	assert.True(t, spec.PreserveRatio)
	assert.Equal(t, models.GravityCenter, spec.Gravity)
	assert.Nil(t, spec.Crop)
	assert.Equal(t, "FFF", spec.FrameBackgroundColor)
	assert.Equal(t, 0, spec.Opacity)
	assert.False(t, spec.PremultipliedAlpha)
	assert.Equal(t, 95, spec.Quality)
	assert.Equal(t, "jpg", spec.OutputFormat)
	assert.Empty(t, spec.Filters)
	assert.False(t, spec.WithInfo)
	assert.False(t, spec.NoRedirect)
	assert.False(t, spec.Debug)
	assert.False(t, spec.Force)
}

func TestParseRequest_AllOptions(t *testing.T) {
	req := rawRequest("a/b.png",
		"cmd=resize_then_fit&width=640&height=480&quality=80&preserve_ratio=false&gravity=top_left"+
			"&crop_x=1&crop_y=2&crop_width=30&crop_height=40&frame_bg_color=000000&premultiplied=1"+
			"&out=PNG&with_info=1&no_redirect=true&debug=1&force=yes"+
			`&filters=[{"id":"unsharp_mask","sigma":1}]`)

	spec, err := ParseRequest(req)

	require.NoError(t, err)
	assert.Equal(t, models.CommandResizeThenFit, spec.Command)
	assert.Equal(t, 640, spec.Width)
	assert.Equal(t, 480, spec.Height)
	assert.Equal(t, 80, spec.Quality)
	assert.False(t, spec.PreserveRatio)
	assert.Equal(t, models.GravityTopLeft, spec.Gravity)
	assert.Equal(t, &models.CropRect{X: 1, Y: 2, Width: 30, Height: 40}, spec.Crop)
	assert.Equal(t, "000000", spec.FrameBackgroundColor)
	assert.True(t, spec.PremultipliedAlpha)
	assert.Equal(t, "png", spec.OutputFormat)
	assert.Equal(t, 100, spec.Opacity)
	require.Len(t, spec.Filters, 1)
	assert.Equal(t, "unsharp_mask", spec.Filters[0].ID)
	assert.True(t, spec.WithInfo)
	assert.True(t, spec.NoRedirect)
	assert.True(t, spec.Debug)
	assert.True(t, spec.Force)
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected models.Command
		wantErr  bool
	}{
		{name: "default", query: "", expected: models.CommandResize},
		{name: "explicit", query: "cmd=smart_crop", expected: models.CommandSmartCrop},
		{name: "info", query: "cmd=info", expected: models.CommandInfo},
		{name: "flag forces crop", query: "cmd=resize&resize_then_crop=1", expected: models.CommandResizeThenCrop},
		{name: "zero flag keeps cmd", query: "cmd=resize_then_fit&resize_then_crop=0", expected: models.CommandResizeThenFit},
		{name: "non integer flag", query: "resize_then_crop=yes", wantErr: true},
		{name: "unknown", query: "cmd=rotate", wantErr: true},
		{name: "requeue is rejected", query: "cmd=requeue", wantErr: true},
		{name: "invalidate is rejected", query: "cmd=invalidate", wantErr: true},
		{name: "empty cmd", query: "cmd=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			cmd, err := resolveCommand(q)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, models.ValidationError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cmd)
		})
	}
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		command       models.Command
		premultiplied bool
		width         *int
		height        *int
		wantErr       bool
	}{
		{name: "boundary 4001 without premultiplied", query: "height=4001&width=4001", command: models.CommandResize, width: intPtr(4001), height: intPtr(4001)},
		{name: "boundary 4001 with premultiplied", query: "height=4001&width=4001", command: models.CommandResize, premultiplied: true, wantErr: true},
		{name: "3999 with premultiplied", query: "w=3999&h=3999", command: models.CommandResize, premultiplied: true, width: intPtr(3999), height: intPtr(3999)},
		{name: "10000 rejected", query: "w=10000", command: models.CommandResize, wantErr: true},
		{name: "10001 rejected", query: "h=10001", command: models.CommandResize, wantErr: true},
		{name: "9999 accepted", query: "w=9999", command: models.CommandResize, width: intPtr(9999)},
		{name: "non integer", query: "w=abc", command: models.CommandResize, wantErr: true},
		{name: "float", query: "w=10.5", command: models.CommandResize, wantErr: true},
		{name: "zero", query: "w=0", command: models.CommandResize, wantErr: true},
		{name: "negative", query: "h=-5", command: models.CommandResize, wantErr: true},
		{name: "short name wins", query: "w=10&width=20", command: models.CommandResize, width: intPtr(10)},
		{name: "resize needs one", query: "", command: models.CommandResize, wantErr: true},
		{name: "resize with height only", query: "h=50", command: models.CommandResize, height: intPtr(50)},
		{name: "crop needs both", query: "w=50", command: models.CommandResizeThenCrop, wantErr: true},
		{name: "fit needs both", query: "h=50", command: models.CommandResizeThenFit, wantErr: true},
		{name: "smart crop needs both", query: "h=50", command: models.CommandSmartCrop, wantErr: true},
		{name: "crop with both", query: "w=50&h=60", command: models.CommandResizeThenCrop, width: intPtr(50), height: intPtr(60)},
		{name: "info needs none", query: "", command: models.CommandInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			w, h, err := parseDimensions(q, tt.command, tt.premultiplied)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, models.ValidationError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestParseRequest_PremultipliedLimit(t *testing.T) {
	_, err := ParseRequest(rawRequest("a.png", "w=4001&h=4001"))
	assert.NoError(t, err)

	_, err = ParseRequest(rawRequest("a.png", "w=4001&h=4001&premultiplied=True"))
	assert.Error(t, err)
}

func TestParseRequest_PremultipliedKey(t *testing.T) {
	key := func(query string) string {
		spec, err := ParseRequest(rawRequest("a.png", query))
		require.NoError(t, err)
		return models.DerivativeKey("a.png", spec)
	}

	on := key("w=10&premultiplied=1")
	assert.Contains(t, on, "--premultiplied_alpha__True")
	assert.Equal(t, on, key("w=10&premultiplied=yes"))
	assert.Equal(t, on, key("w=10&premultiplied=TRUE"))

	assert.NotContains(t, key("w=10&premultiplied=false"), "premultiplied_alpha")
	assert.NotContains(t, key("w=10&premultiplied=0"), "premultiplied_alpha")
}

func TestMakeRetina(t *testing.T) {
	w, h := makeRetina(intPtr(100), intPtr(100), 2)
	assert.Equal(t, intPtr(200), w)
	assert.Equal(t, intPtr(200), h)

	w, h = makeRetina(intPtr(100), nil, 2)
	assert.Equal(t, intPtr(200), w)
	assert.Nil(t, h)

	w, h = makeRetina(nil, intPtr(33), 1.5)
	assert.Nil(t, w)
	assert.Equal(t, intPtr(49), h)
}

func TestParseRequest_Retina(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		dpr    string
		width  int
		height int
	}{
		{name: "applied", query: "w=100&h=50&retina=true", dpr: "2", width: 200, height: 100},
		{name: "no cookie", query: "w=100&h=50&retina=true", width: 100, height: 50},
		{name: "retina off", query: "w=100&h=50", dpr: "2", width: 100, height: 50},
		{name: "retina false", query: "w=100&h=50&retina=false", dpr: "2", width: 100, height: 50},
		{name: "bad cookie ignored", query: "w=100&retina=1", dpr: "x", width: 100},
		{name: "applied after validation", query: "w=9000&retina=1", dpr: "2", width: 18000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := rawRequest("a.jpg", tt.query)
			req.DPR = tt.dpr

			spec, err := ParseRequest(req)

			require.NoError(t, err)
			assert.Equal(t, tt.width, spec.Width)
			assert.Equal(t, tt.height, spec.Height)
		})
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		name     string
		ext      string
		command  models.Command
		query    string
		accept   string
		expected string
		wantErr  bool
	}{
		{name: "fit defaults to png", ext: ".jpg", command: models.CommandResizeThenFit, expected: "png"},
		{name: "webp accepted", ext: ".jpg", command: models.CommandResize, accept: "image/webp", expected: "webp"},
		{name: "browser accept header", ext: ".jpg", command: models.CommandResize, accept: "text/html,image/avif,image/webp,*/*", expected: "webp"},
		{name: "path extension", ext: ".jpeg", command: models.CommandResize, expected: "jpeg"},
		{name: "path extension is lowercased", ext: ".PNG", command: models.CommandResize, expected: "png"},
		{name: "explicit out wins over accept", ext: ".jpg", command: models.CommandResize, query: "out=png", accept: "image/webp", expected: "png"},
		{name: "explicit out wins over fit default", ext: ".png", command: models.CommandResizeThenFit, query: "out=jpg", expected: "jpg"},
		{name: "explicit out lowercased", ext: ".png", command: models.CommandResize, query: "out=WEBP", expected: "webp"},
		{name: "webp beats fit default", ext: ".jpg", command: models.CommandResizeThenFit, accept: "image/webp", expected: "webp"},
		{name: "unsupported out", ext: ".jpg", command: models.CommandResize, query: "out=gif", wantErr: true},
		{name: "unknown out", ext: ".jpg", command: models.CommandResize, query: "out=tiff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			out, err := outputFormat(tt.ext, tt.command, q, tt.accept)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, models.ValidationError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestOpacityFor(t *testing.T) {
	assert.Equal(t, 0, opacityFor(models.CommandResizeThenCrop, "png"))
	assert.Equal(t, 0, opacityFor(models.CommandResize, "jpg"))
	assert.Equal(t, 0, opacityFor(models.CommandResize, "jpeg"))
	assert.Equal(t, 100, opacityFor(models.CommandResize, "png"))
	assert.Equal(t, 100, opacityFor(models.CommandResizeThenFit, "webp"))
}

func TestParseRequest_OpacityParamIsIgnored(t *testing.T) {
	spec, err := ParseRequest(rawRequest("a.png", "w=10&opacity=40"))

	require.NoError(t, err)
	assert.Equal(t, 100, spec.Opacity)
}

func TestParseRequest_Gravity(t *testing.T) {
	tests := []struct {
		query    string
		expected models.Gravity
		wantErr  bool
	}{
		{query: "w=1", expected: models.GravityCenter},
		{query: "w=1&gravity=", expected: ""},
		{query: "w=1&gravity=smart", expected: models.GravitySmart},
		{query: "w=1&gravity=top_left", expected: models.GravityTopLeft},
		{query: "w=1&gravity=north", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			spec, err := ParseRequest(rawRequest("a.png", tt.query))
			if tt.wantErr {
				assert.IsType(t, models.ValidationError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec.Gravity)
		})
	}
}

func TestParseRequest_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "quality not integer", query: "w=1&quality=high", field: "quality"},
		{name: "quality zero", query: "w=1&quality=0", field: "quality"},
		{name: "quality above 100", query: "w=1&quality=101", field: "quality"},
		{name: "bad frame color", query: "w=1&frame_bg_color=zzz", field: "frame_bg_color"},
		{name: "partial crop", query: "w=1&crop_x=1&crop_y=1", field: "crop"},
		{name: "crop not integer", query: "w=1&crop_x=a&crop_y=1&crop_width=1&crop_height=1", field: "crop_x"},
		{name: "negative crop origin", query: "w=1&crop_x=-5&crop_y=1&crop_width=1&crop_height=1", field: "crop"},
		{name: "negative crop size", query: "w=1&crop_x=1&crop_y=1&crop_width=10&crop_height=-10", field: "crop"},
		{name: "filters not json", query: "w=1&filters={oops", field: "filters"},
		{name: "filters not array", query: `w=1&filters={"id":"translucent"}`, field: "filters"},
		{name: "unknown filter", query: `w=1&filters=[{"id":"sepia"}]`, field: "filters"},
		{name: "filter without id", query: `w=1&filters=[{"sigma":1}]`, field: "filters"},
		{name: "unknown filter param", query: `w=1&filters=[{"id":"unsharp_mask","gain":2}]`, field: "filters"},
		{name: "wrong param type", query: `w=1&filters=[{"id":"unsharp_mask","sigma":"big"}]`, field: "filters"},
		{name: "missing required param", query: `w=1&filters=[{"id":"translucent"}]`, field: "filters"},
		{name: "bad filter color", query: `w=1&filters=[{"id":"translucent","background_color":"nothex"}]`, field: "filters"},
		{name: "oversized filter composite", query: `w=1&filters=[{"id":"translucent","background_color":"000","composite_width":100000,"composite_height":100000}]`, field: "filters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(rawRequest("a.png", tt.query))

			require.Error(t, err)
			var verr models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseRequest_CropFromFullQuery(t *testing.T) {
	spec, err := ParseRequest(rawRequest("a.png", "w=10&h=10&crop_x=0&crop_y=5&crop_width=6&crop_height=7"))

	require.NoError(t, err)
	require.NotNil(t, spec.Crop)
	assert.False(t, spec.Crop.Usable())
}

func TestDecodeFilters(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		filters, err := decodeFilters("")
		require.NoError(t, err)
		assert.Nil(t, filters)
	})

	t.Run("round trip", func(t *testing.T) {
		raw := `[{"id":"translucent","background_color":"333","opacity":40,"composite_x":5},{"id":"unsharp_mask","radius":5,"amount":1.5}]`

		filters, err := decodeFilters(raw)
		require.NoError(t, err)
		require.Len(t, filters, 2)

		encoded, err := json.Marshal(filters)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(encoded))
	})

	t.Run("hyphenated params are normalized", func(t *testing.T) {
		filters, err := decodeFilters(`[{"id":"translucent","background-color":"333","composite-width":20}]`)
		require.NoError(t, err)
		require.Len(t, filters, 1)
		assert.Equal(t, "333", filters[0].Params["background_color"])
		assert.Equal(t, float64(20), filters[0].Params["composite_width"])
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeFilters(`[{"id":`)
		assert.IsType(t, models.ValidationError{}, err)
	})
}

func TestMakeBool(t *testing.T) {
	tests := map[string]bool{
		"false": false,
		"False": false,
		"FALSE": false,
		"0":     false,
		"true":  true,
		"1":     true,
		"yes":   true,
		"":      true,
		"no":    true,
	}

	for in, expected := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, expected, makeBool(in))
		})
	}
}

func TestParseRequest_KeyStability(t *testing.T) {
	a, err := ParseRequest(rawRequest("media/cat.jpg", "w=300&h=200&cmd=resize_then_crop"))
	require.NoError(t, err)
	b, err := ParseRequest(rawRequest("media/cat.jpg", "h=200&w=300&cmd=resize_then_crop&quality=95&gravity=center&preserve_ratio=true"))
	require.NoError(t, err)

	assert.Equal(t, models.DerivativeKey("media/cat.jpg", a), models.DerivativeKey("media/cat.jpg", b))
	assert.Equal(t, "prism-images/media/cat.jpg--resize_then_crop--w__300--h__200.jpg", models.DerivativeKey("media/cat.jpg", a))
}
