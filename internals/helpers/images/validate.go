package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	_ "github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
)

func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

// ContentTypeForExt is used when only a stored filename is known.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

var (
	ErrInvalidImage      = errors.New("invalid image")
	ErrEmptyImage        = fmt.Errorf("%w: empty file", ErrInvalidImage)
	ErrTooLarge          = fmt.Errorf("%w: file too large", ErrInvalidImage)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrInvalidImage)
	ErrUnreadable        = fmt.Errorf("%w: cannot be decoded", ErrInvalidImage)
	ErrTooSmall          = fmt.Errorf("%w: dimensions too small", ErrInvalidImage)
)

type Limits struct {
	MaxBytes  int64
	MinWidth  int
	MinHeight int
}

// Upload is a source image that passed Validate.
type Upload struct {
	Filename string
	Data     []byte
	Format   Format
	Width    int
	Height   int
}

var mimeFormats = map[string]Format{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/webp": FormatWebP,
}

// Validate rejects anything the derivative generator cannot handle.
func Validate(data []byte, filename string, lim Limits) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if lim.MaxBytes > 0 && int64(len(data)) > lim.MaxBytes {
		return nil, fmt.Errorf("%w (%d bytes, max %d)", ErrTooLarge, len(data), lim.MaxBytes)
	}

	mt := mimetype.Detect(data)
	format, ok := formatOf(mt)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, mt.String(), filepath.Ext(filename))
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if Format(name) != format {
		return nil, fmt.Errorf("%w: content is %s but decodes as %s", ErrUnreadable, format, name)
	}
	if cfg.Width < lim.MinWidth || cfg.Height < lim.MinHeight {
		return nil, fmt.Errorf("%w: %dx%d, min %dx%d", ErrTooSmall, cfg.Width, cfg.Height, lim.MinWidth, lim.MinHeight)
	}

	return &Upload{
		Filename: filename,
		Data:     data,
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func formatOf(mt *mimetype.MIME) (Format, bool) {
	for m := mt; m != nil; m = m.Parent() {
		if f, ok := mimeFormats[m.String()]; ok {
			return f, true
		}
	}
	return "", false
}

// ReadUpload reads a multipart file (capped at MaxBytes+1) and validates it.
func ReadUpload(fh *multipart.FileHeader, lim Limits) (*Upload, error) {
	if fh == nil {
		return nil, nil
	}
	if lim.MaxBytes > 0 && fh.Size > lim.MaxBytes {
		return nil, fmt.Errorf("%w (%d bytes, max %d)", ErrTooLarge, fh.Size, lim.MaxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if lim.MaxBytes > 0 {
		r = io.LimitReader(f, lim.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return Validate(data, fh.Filename, lim)
}
