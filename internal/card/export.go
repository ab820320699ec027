package card

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/signintech/gopdf"
)

// WriteZip streams cards into a zip archive. PNGs are stored, not deflated.
func WriteZip(ctx context.Context, w io.Writer, cards []Card) error {
	zw := zip.NewWriter(w)
	for _, c := range cards {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		f, err := zw.CreateHeader(&zip.FileHeader{Name: c.Name, Method: zip.Store})
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to add %s: %w", c.Name, err)
		}
		if _, err := f.Write(c.Data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write %s: %w", c.Name, err)
		}
	}
	return zw.Close()
}

// WriteDir writes each card into dir. Every file goes to a temp name first and is renamed
// into place, so a cancelled export never leaves a partial card behind.
func WriteDir(ctx context.Context, dir string, cards []Card) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, c := range cards {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFileAtomic(dir, c.Name, c.Data); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".card-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WritePDF lays the cards out one per A4 page, centered and scaled to fit the margins.
func WritePDF(ctx context.Context, w io.Writer, cards []Card) error {
	const margin = 36.0

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pageW, pageH := gopdf.PageSizeA4.W, gopdf.PageSizeA4.H

	for _, c := range cards {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := png.Decode(bytes.NewReader(c.Data))
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", c.Name, err)
		}

		b := img.Bounds()
		iw, ih := float64(b.Dx()), float64(b.Dy())
		scale := min((pageW-2*margin)/iw, (pageH-2*margin)/ih)
		rw, rh := iw*scale, ih*scale

		pdf.AddPage()
		if err := pdf.ImageFrom(img, (pageW-rw)/2, (pageH-rh)/2, &gopdf.Rect{W: rw, H: rh}); err != nil {
			return fmt.Errorf("failed to place %s: %w", c.Name, err)
		}
	}

	if err := pdf.Write(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
