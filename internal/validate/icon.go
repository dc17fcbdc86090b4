package validate

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	// Decoders beyond the ones imaging registers (png, jpeg, gif, bmp, tiff).
	_ "golang.org/x/image/webp"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
)

// MaxIconSize is the largest side stored for raster icons. Larger square
// images are downsampled to exactly this size.
const MaxIconSize = 512

// IconDecoder implements domain.IconDecoder.
// Payloads are tried as a raster image first, then as UTF-8 SVG text.
type IconDecoder struct {
	logger *zap.Logger
}

// NewIconDecoder creates an icon decoder.
func NewIconDecoder(logger *zap.Logger) *IconDecoder {
	return &IconDecoder{logger: logger}
}

// Decode classifies data and returns the normalized icon to store.
func (d *IconDecoder) Decode(name string, data []byte) (*domain.Icon, error) {
	if err := CheckName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIconValidation, err)
	}

	img, rasterErr := imaging.Decode(bytes.NewReader(data))
	if rasterErr == nil {
		d.logger.Debug("icon is a raster image", zap.String("icon", name))
		return d.raster(name, img)
	}

	if utf8.Valid(data) {
		svgErr := ParseSVG(data)
		if svgErr == nil {
			d.logger.Debug("icon is svg text", zap.String("icon", name))
			return &domain.Icon{
				Format: domain.IconVector,
				Bucket: domain.ScalableBucket,
				Ext:    "svg",
				Data:   data,
			}, nil
		}
		return nil, fmt.Errorf("%w: svg: %v", domain.ErrNoTypeFound, svgErr)
	}

	return nil, fmt.Errorf("%w: detected %s: %v",
		domain.ErrNoTypeFound, mimetype.Detect(data).String(), rasterErr)
}

func (d *IconDecoder) raster(name string, img image.Image) (*domain.Icon, error) {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("%w: %dx%d", domain.ErrNotSquare, b.Dx(), b.Dy())
	}

	resized := false
	if b.Dx() > MaxIconSize {
		// Soft fallback, never an error
		d.logger.Warn("icon larger than maximum, resizing",
			zap.String("icon", name),
			zap.Int("size", b.Dx()),
			zap.Int("max", MaxIconSize))
		img = imaging.Resize(img, MaxIconSize, MaxIconSize, imaging.Lanczos)
		resized = true
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", domain.ErrIconValidation, err)
	}

	side := img.Bounds().Dx()
	return &domain.Icon{
		Format:  domain.IconRaster,
		Bucket:  fmt.Sprintf("%dx%d", side, side),
		Ext:     "png",
		Data:    buf.Bytes(),
		Width:   side,
		Height:  side,
		Resized: resized,
	}, nil
}

// ParseSVG checks that data is well-formed XML whose root element is <svg>.
func ParseSVG(data []byte) error {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		if !strings.EqualFold(n.Data, "svg") {
			return fmt.Errorf("root element is <%s>, not <svg>", n.Data)
		}
		return nil
	}
	return fmt.Errorf("no root element")
}

// Ensure IconDecoder implements domain.IconDecoder.
var _ domain.IconDecoder = (*IconDecoder)(nil)
