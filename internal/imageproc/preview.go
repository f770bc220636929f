// Package imageproc renders the editor's visual effect onto real pixels for previews and downloads.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrNilSource = errors.New("nil-reader source image provided")

// Preview decodes r, optionally fits it into maxSide x maxSide, applies eff and encodes the
// result in format.
func Preview(r io.Reader, eff editor.Effect, maxSide int, format imaging.Format) (io.Reader, int64, error) {
	if r == nil {
		return nil, 0, ErrNilSource
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode source image in Preview: %w", err)
	}

	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	out := Adjust(img, eff)

	bg := color.Color(color.NRGBA{})
	if format == imaging.JPEG {
		bg = color.White
	}
	out = Fade(out, eff.Opacity, bg)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode preview in Preview: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
