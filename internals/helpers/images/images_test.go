package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 7), B: 120, A: 200})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestMakeName(t *testing.T) {
	a := MakeName("s3cr3t", "ABC Org-1-logo")
	assert.Equal(t, a, MakeName("s3cr3t", "ABC Org-1-logo"))
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, MakeName("s3cr3t", "ABC Org-2-logo"))
	assert.NotEqual(t, a, MakeName("other", "ABC Org-1-logo"))
}

func TestFilenameAndNames(t *testing.T) {
	size := Size{Label: "large", Width: 357, Height: 100}
	assert.Equal(t, "abc_357x100.jpg", Filename("abc", size, ""))
	assert.Equal(t, "abc_357x100.png", Filename("abc", size, ".png"))

	sizes := []Size{size, {Label: "small", Width: 89, Height: 25}}
	names := Names("k", LogicalKey("ABC Org", 7, "logo_image"), sizes, "jpg")
	stem := MakeName("k", "ABC Org-7-logo_image")
	assert.Equal(t, map[string]string{
		"357x100": stem + "_357x100.jpg",
		"89x25":   stem + "_89x25.jpg",
	}, names)
}

func TestParseSizes(t *testing.T) {
	sizes, err := ParseSizes("large:357x100, medium:178x50,small:89X25")
	require.NoError(t, err)
	require.Len(t, sizes, 3)
	assert.Equal(t, Size{Label: "large", Width: 357, Height: 100}, sizes[0])
	assert.Equal(t, "89x25", sizes[2].Pixels())

	for _, bad := range []string{"", "large", "large:0x10", "large:10", "a:1x1,a:2x2", ":1x1"} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseSizes(bad)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	lim := Limits{MaxBytes: 1 << 20, MinWidth: 4, MinHeight: 4}

	t.Run("png accepted", func(t *testing.T) {
		up, err := Validate(samplePNG(t, 40, 30), "logo.png", lim)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, up.Format)
		assert.Equal(t, 40, up.Width)
		assert.Equal(t, 30, up.Height)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Validate(nil, "x.png", lim)
		assert.ErrorIs(t, err, ErrEmptyImage)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := Validate([]byte("hello, this is plain text"), "x.png", lim)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := Validate(samplePNG(t, 40, 30), "x.png", Limits{MaxBytes: 10})
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("too small", func(t *testing.T) {
		_, err := Validate(samplePNG(t, 2, 2), "x.png", lim)
		assert.ErrorIs(t, err, ErrTooSmall)
	})
}

// halvesJPEG is w×h with a red left half and a blue right half, tagged with
// the given EXIF orientation.
func halvesJPEG(t *testing.T, w, h int, orientation uint16) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 220, B: 20, A: 255}
			if x >= w/2 {
				c = color.RGBA{R: 20, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return withOrientation(buf.Bytes(), orientation)
}

// withOrientation inserts a big-endian APP1 Exif segment holding a single
// Orientation (0x0112) entry right after the SOI marker.
func withOrientation(jpg []byte, orientation uint16) []byte {
	tiff := []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08, // header, IFD0 at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, // Orientation, SHORT, count 1
		byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	n := len(payload) + 2
	seg := append([]byte{0xFF, 0xE1, byte(n >> 8), byte(n)}, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

func isRed(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return r > b*2
}

func isBlue(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return b > r*2
}

func TestGenerate(t *testing.T) {
	sizes := []Size{
		{Label: "large", Width: 20, Height: 10},
		{Label: "square", Width: 8, Height: 8},
	}

	t.Run("png stays png with exact dimensions", func(t *testing.T) {
		d, err := Generate(samplePNG(t, 40, 30), sizes)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, d.Format)
		assert.Equal(t, "png", d.Extension())
		require.Len(t, d.Files, 2)

		for _, s := range sizes {
			cfg, name, err := image.DecodeConfig(bytes.NewReader(d.Files[s.Pixels()]))
			require.NoError(t, err)
			assert.Equal(t, "png", name)
			assert.Equal(t, s.Width, cfg.Width)
			assert.Equal(t, s.Height, cfg.Height)
		}
	})

	t.Run("jpeg stays jpeg", func(t *testing.T) {
		d, err := Generate(sampleJPEG(t, 64, 48), sizes)
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, d.Format)
		assert.Equal(t, "jpg", d.Extension())
		_, name, err := image.DecodeConfig(bytes.NewReader(d.Files["20x10"]))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", name)
	})

	t.Run("exif orientation is baked into every derivative", func(t *testing.T) {
		// orientation 6: the stored pixels must be turned 90° clockwise,
		// so the red left half ends up on top.
		portrait := []Size{{Label: "tall", Width: 10, Height: 20}, {Label: "small", Width: 6, Height: 12}}
		d, err := Generate(halvesJPEG(t, 40, 20, 6), portrait)
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, d.Format)

		for _, s := range portrait {
			img, err := imaging.Decode(bytes.NewReader(d.Files[s.Pixels()]))
			require.NoError(t, err)
			require.Equal(t, s.Width, img.Bounds().Dx(), s.Label)
			require.Equal(t, s.Height, img.Bounds().Dy(), s.Label)
			assert.True(t, isRed(img.At(s.Width/2, 1)), "top of %s should be red", s.Label)
			assert.True(t, isBlue(img.At(s.Width/2, s.Height-2)), "bottom of %s should be blue", s.Label)
		}
	})

	t.Run("untagged jpeg keeps its layout", func(t *testing.T) {
		d, err := Generate(halvesJPEG(t, 40, 20, 1), []Size{{Label: "wide", Width: 20, Height: 10}})
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(d.Files["20x10"]))
		require.NoError(t, err)
		assert.True(t, isRed(img.At(2, 5)))
		assert.True(t, isBlue(img.At(17, 5)))
	})

	t.Run("webp stays webp", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 40, 30))
		for y := 0; y < 30; y++ {
			for x := 0; x < 40; x++ {
				src.Set(x, y, color.NRGBA{R: uint8(x * 6), G: 90, B: uint8(y * 8), A: 255})
			}
		}
		var buf bytes.Buffer
		require.NoError(t, webp.Encode(&buf, src, &webp.Options{Lossless: true}))

		d, err := Generate(buf.Bytes(), sizes)
		require.NoError(t, err)
		assert.Equal(t, FormatWebP, d.Format)
		assert.Equal(t, "webp", d.Extension())
		for _, s := range sizes {
			cfg, err := webp.DecodeConfig(bytes.NewReader(d.Files[s.Pixels()]))
			require.NoError(t, err)
			assert.Equal(t, s.Width, cfg.Width)
			assert.Equal(t, s.Height, cfg.Height)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		src := samplePNG(t, 33, 21)
		a, err := Generate(src, sizes)
		require.NoError(t, err)
		b, err := Generate(src, sizes)
		require.NoError(t, err)
		assert.Equal(t, a.Files, b.Files)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Generate([]byte("nope"), sizes)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("no sizes", func(t *testing.T) {
		_, err := Generate(samplePNG(t, 4, 4), nil)
		assert.Error(t, err)
	})
}
