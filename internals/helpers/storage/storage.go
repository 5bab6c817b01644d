// Package storage is the gateway between image producers and wherever the
// bytes end up. Backends are resolved from a Descriptor at call time, so
// theme images and shipped placeholders can live in different places.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrReadOnly     = errors.New("storage: backend is read-only")
	ErrNotFound     = errors.New("storage: object not found")
	ErrUnknownClass = errors.New("storage: unknown backend class")
)

type Object struct {
	Name         string
	Size         int64
	LastModified time.Time
}

type Backend interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete succeeds when name does not exist.
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	URL(name string) string
}

// Descriptor names a backend class and its options, e.g.
// {Class: "filesystem", Options: {"dir": "/var/media/themes", "base_url": "/media/themes"}}.
type Descriptor struct {
	Class   string
	Options map[string]string
}

func (d Descriptor) Option(key, def string) string {
	if v, ok := d.Options[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (d Descriptor) String() string {
	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		if isSecretOption(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d.Options[k])
	}
	return d.Class + "{" + strings.Join(parts, " ") + "}"
}

func isSecretOption(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "secret") || strings.Contains(k, "key") || strings.Contains(k, "token")
}

type Factory func(d Descriptor) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"filesystem": func(d Descriptor) (Backend, error) { return NewFileSystem(d) },
		"static":     func(d Descriptor) (Backend, error) { return NewStatic(d), nil },
		"oss":        func(d Descriptor) (Backend, error) { return NewOSS(d) },
	}
	cacheMu sync.Mutex
	cache   = map[string]Backend{}
)

// Register adds or replaces a backend class.
func Register(class string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[class] = f
	cacheMu.Lock()
	cache = map[string]Backend{}
	cacheMu.Unlock()
}

// Open resolves d into a Backend. Backends are cached per descriptor.
func Open(d Descriptor) (Backend, error) {
	key := cacheKey(d)
	cacheMu.Lock()
	if b, ok := cache[key]; ok {
		cacheMu.Unlock()
		return b, nil
	}
	cacheMu.Unlock()

	registryMu.RLock()
	f, ok := registry[d.Class]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, d.Class)
	}
	b, err := f(d)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", d, err)
	}

	cacheMu.Lock()
	cache[key] = b
	cacheMu.Unlock()
	return b, nil
}

func cacheKey(d Descriptor) string {
	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(d.Class)
	for _, k := range keys {
		sb.WriteString("|" + k + "=" + d.Options[k])
	}
	return sb.String()
}

// URLFor returns the public URL of name, adding ?v=version for cache busting.
func URLFor(b Backend, name, version string) string {
	u := b.URL(name)
	if version == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "v=" + url.QueryEscape(version)
}

// DeleteAll deletes every name and joins the errors.
func DeleteAll(ctx context.Context, b Backend, names []string) error {
	var errs []error
	for _, n := range names {
		if err := b.Delete(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

func joinURL(base, name string) string {
	if base == "" {
		return "/" + strings.TrimLeft(name, "/")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
