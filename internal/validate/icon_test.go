package validate

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: 0x40, A: 0xff})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	return cfg.Width, cfg.Height
}

// TestIconDecoder_Raster verifies raster icons are bucketed and normalized to PNG
func TestIconDecoder_Raster(t *testing.T) {
	d := NewIconDecoder(zap.NewNop())

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, testImage(48, 48), nil))
	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, testImage(32, 32), nil))

	tests := []struct {
		name    string
		data    []byte
		bucket  string
		side    int
		resized bool
	}{
		{"png 256", encodePNG(t, 256, 256), "256x256", 256, false},
		{"png 512", encodePNG(t, 512, 512), "512x512", 512, false},
		{"png 1024", encodePNG(t, 1024, 1024), "512x512", 512, true},
		{"jpeg 48", jpg.Bytes(), "48x48", 48, false},
		{"gif 32", gf.Bytes(), "32x32", 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			icon, err := d.Decode("app", tt.data)
			require.NoError(t, err)

			assert.Equal(t, domain.IconRaster, icon.Format)
			assert.Equal(t, tt.bucket, icon.Bucket)
			assert.Equal(t, "png", icon.Ext)
			assert.Equal(t, tt.side, icon.Width)
			assert.Equal(t, tt.side, icon.Height)
			assert.Equal(t, tt.resized, icon.Resized)

			w, h := decodedSize(t, icon.Data)
			assert.Equal(t, tt.side, w)
			assert.Equal(t, tt.side, h)
		})
	}
}

// TestIconDecoder_NotSquare verifies any non-square raster is rejected
func TestIconDecoder_NotSquare(t *testing.T) {
	d := NewIconDecoder(zap.NewNop())

	for _, size := range [][2]int{{16, 32}, {32, 16}, {1024, 1023}, {1, 2}} {
		_, err := d.Decode("app", encodePNG(t, size[0], size[1]))
		assert.ErrorIs(t, err, domain.ErrNotSquare)
		assert.ErrorIs(t, err, domain.ErrIconValidation)
	}
}

// TestIconDecoder_SVG verifies vector icons are kept verbatim
func TestIconDecoder_SVG(t *testing.T) {
	d := NewIconDecoder(zap.NewNop())
	svg := []byte(`<?xml version="1.0"?>
<!-- drawn by hand -->
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16"><circle cx="8" cy="8" r="7"/></svg>`)

	icon, err := d.Decode("app-symbolic", svg)
	require.NoError(t, err)
	assert.Equal(t, domain.IconVector, icon.Format)
	assert.Equal(t, domain.ScalableBucket, icon.Bucket)
	assert.Equal(t, "svg", icon.Ext)
	assert.Equal(t, svg, icon.Data)
}

// TestIconDecoder_NoTypeFound verifies unknown payloads are rejected
func TestIconDecoder_NoTypeFound(t *testing.T) {
	d := NewIconDecoder(zap.NewNop())

	payloads := [][]byte{
		{},
		{0x00, 0x01, 0xff, 0xfe, 0x80},
		[]byte("plain words"),
		[]byte("<html><body>no</body></html>"),
		[]byte("%PDF-1.7\n\xe2\xe3\xcf\xd3"),
	}

	for _, data := range payloads {
		_, err := d.Decode("app", data)
		assert.ErrorIs(t, err, domain.ErrNoTypeFound, "payload %q", data)
	}
}

// TestIconDecoder_InvalidName verifies names are checked before decoding
func TestIconDecoder_InvalidName(t *testing.T) {
	d := NewIconDecoder(zap.NewNop())

	_, err := d.Decode("../app", encodePNG(t, 16, 16))
	assert.ErrorIs(t, err, domain.ErrIconValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

// TestParseSVG verifies the root element check
func TestParseSVG(t *testing.T) {
	assert.NoError(t, ParseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)))
	assert.NoError(t, ParseSVG([]byte(`<SVG/>`)))
	assert.Error(t, ParseSVG([]byte(`<html/>`)))
	assert.Error(t, ParseSVG([]byte(`just text`)))
}
