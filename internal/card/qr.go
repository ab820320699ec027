package card

import (
	"errors"
	"fmt"
	"image"

	"github.com/skip2/go-qrcode"
)

// ErrUnavailable marks a card or QR that could not be produced. Callers must not fall back
// to a blank image.
var ErrUnavailable = errors.New("card unavailable")

// QRGenerator renders invite tokens with the highest error correction level, so a code
// still scans with part of it covered by artwork or wear.
type QRGenerator struct {
	level qrcode.RecoveryLevel
}

func NewQRGenerator() *QRGenerator {
	return &QRGenerator{level: qrcode.Highest}
}

// Image renders payload as a square image of size pixels.
func (g *QRGenerator) Image(payload string, size int) (image.Image, error) {
	code, err := qrcode.New(payload, g.level)
	if err != nil {
		return nil, fmt.Errorf("%w: qr encode: %v", ErrUnavailable, err)
	}
	return code.Image(size), nil
}

// PNG renders payload as PNG bytes of size pixels.
func (g *QRGenerator) PNG(payload string, size int) ([]byte, error) {
	code, err := qrcode.New(payload, g.level)
	if err != nil {
		return nil, fmt.Errorf("%w: qr encode: %v", ErrUnavailable, err)
	}
	data, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("%w: qr png: %v", ErrUnavailable, err)
	}
	return data, nil
}
