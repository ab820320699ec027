package card

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"ms-invites/internal/models"
)

const (
	// DefaultRenderSize is the QR resolution before it is scaled onto the background.
	DefaultRenderSize = 1024
	// BareQRSize is the edge of the image returned when there is no background.
	BareQRSize = 512
	// MaxBackgroundPixels caps width*height of a background before it is decoded.
	MaxBackgroundPixels = 50_000_000
)

// Composer draws an invite's QR code onto a card background.
type Composer struct {
	qr         *QRGenerator
	renderSize int
}

func NewComposer(renderSize int) *Composer {
	if renderSize <= 0 {
		renderSize = DefaultRenderSize
	}
	return &Composer{qr: NewQRGenerator(), renderSize: renderSize}
}

// Compose returns the background with the QR for payload drawn over it. Placement X and Y
// are the QR center as fractions of the background width and height; Size is the QR edge
// as a fraction of the shorter side. Without a background the bare QR is returned.
func (c *Composer) Compose(background []byte, payload string, placement models.Placement) (image.Image, error) {
	if len(background) == 0 {
		return c.qr.Image(payload, BareQRSize)
	}
	if err := placement.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(background))
	if err != nil {
		return nil, fmt.Errorf("%w: decode background: %v", ErrUnavailable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxBackgroundPixels {
		return nil, fmt.Errorf("%w: background is %dx%d, limit is %d pixels", ErrUnavailable, cfg.Width, cfg.Height, MaxBackgroundPixels)
	}

	bg, _, err := image.Decode(bytes.NewReader(background))
	if err != nil {
		return nil, fmt.Errorf("%w: decode background: %v", ErrUnavailable, err)
	}

	bounds := bg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty background", ErrUnavailable)
	}

	edge := placement.Size * float64(min(w, h))
	x := placement.X*float64(w) - edge/2
	y := placement.Y*float64(h) - edge/2

	renderSize := c.renderSize
	if need := int(math.Ceil(edge)); need > renderSize {
		renderSize = need
	}
	code, err := c.qr.Image(payload, renderSize)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), bg, bounds.Min, draw.Src)

	edgePx := max(int(math.Round(edge)), 1)
	x0, y0 := int(math.Round(x)), int(math.Round(y))
	target := image.Rect(x0, y0, x0+edgePx, y0+edgePx)
	xdraw.CatmullRom.Scale(canvas, target, code, code.Bounds(), xdraw.Over, nil)

	return canvas, nil
}

// ComposePNG is Compose encoded as PNG.
func (c *Composer) ComposePNG(background []byte, payload string, placement models.Placement) ([]byte, error) {
	img, err := c.Compose(background, payload, placement)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// ComposeWithMetadata is ComposePNG with the guest and event written into the PNG's
// text chunks. The pixels are the same as Compose's.
func (c *Composer) ComposeWithMetadata(background []byte, payload string, placement models.Placement, meta Metadata) ([]byte, error) {
	data, err := c.ComposePNG(background, payload, placement)
	if err != nil {
		return nil, err
	}
	return WithMetadata(data, meta)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrUnavailable, err)
	}
	return buf.Bytes(), nil
}
