package storage

import (
	"context"
	"io"
)

// Static serves assets shipped with the deployment (placeholders). It only builds URLs.
type Static struct {
	BaseURL string
}

func NewStatic(d Descriptor) *Static {
	return &Static{BaseURL: d.Option("base_url", "/static")}
}

func (s *Static) Save(context.Context, string, []byte, string) error { return ErrReadOnly }
func (s *Static) Delete(context.Context, string) error               { return ErrReadOnly }
func (s *Static) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}
func (s *Static) List(context.Context, string) ([]Object, error) { return nil, nil }
func (s *Static) URL(name string) string                         { return joinURL(s.BaseURL, name) }
