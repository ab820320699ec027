package models

import "fmt"

// Placement locates a QR code on a card background. X and Y are the normalized
// center of the code; Size is its edge as a fraction of the background's shorter side.
type Placement struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// DefaultPlacement centers the code at the default size.
func DefaultPlacement() Placement {
	return Placement{X: 0.5, Y: 0.5, Size: DefaultQRSize}
}

// Validate checks X, Y in [0,1] and Size in (0,1].
func (p Placement) Validate() error {
	if p.X < 0 || p.X > 1 {
		return fmt.Errorf("qr position x %v outside [0,1]", p.X)
	}
	if p.Y < 0 || p.Y > 1 {
		return fmt.Errorf("qr position y %v outside [0,1]", p.Y)
	}
	if p.Size <= 0 || p.Size > 1 {
		return fmt.Errorf("qr size %v outside (0,1]", p.Size)
	}
	return nil
}
