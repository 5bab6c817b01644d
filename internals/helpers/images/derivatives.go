package images

import (
	"bytes"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	jpegQuality = 90
	webpQuality = 85
)

// Derivatives holds one encoded image per requested size, keyed by Size.Pixels().
type Derivatives struct {
	Format Format
	Files  map[string][]byte
}

func (d *Derivatives) Extension() string { return d.Format.Extension() }

// Generate decodes src once and renders every size in the source format.
// The EXIF orientation of the original is applied before resizing, so each
// derivative is stored upright whatever the viewer does with metadata.
// src is expected to have passed Validate.
func Generate(src []byte, sizes []Size) (*Derivatives, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no target sizes")
	}
	_, name, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	format := Format(name)
	if _, ok := encoders[format]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	original, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	base := toNRGBA(original)

	out := &Derivatives{Format: format, Files: make(map[string][]byte, len(sizes))}
	for _, s := range sizes {
		scaled := imaging.Resize(base, s.Width, s.Height, imaging.Lanczos)
		var buf bytes.Buffer
		if err := encoders[format](&buf, scaled); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", s.Label, s.Pixels(), err)
		}
		out.Files[s.Pixels()] = buf.Bytes()
	}
	return out, nil
}

// toNRGBA normalizes paletted/gray/CMYK sources to a mode with an alpha channel.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

var encoders = map[Format]func(*bytes.Buffer, image.Image) error{
	FormatJPEG: func(w *bytes.Buffer, img image.Image) error {
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	},
	FormatPNG: func(w *bytes.Buffer, img image.Image) error {
		return imaging.Encode(w, img, imaging.PNG)
	},
	FormatGIF: func(w *bytes.Buffer, img image.Image) error {
		return imaging.Encode(w, img, imaging.GIF)
	},
	FormatWebP: func(w *bytes.Buffer, img image.Image) error {
		return webp.Encode(w, img, &webp.Options{Quality: webpQuality})
	},
}
