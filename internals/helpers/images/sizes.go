package images

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is one named target of the derivative set, e.g. {"large", 357, 100}.
type Size struct {
	Label  string
	Width  int
	Height int
}

func (s Size) Pixels() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ParseSizes reads "label:WxH,label:WxH" keeping declaration order.
func ParseSizes(raw string) ([]Size, error) {
	var out []Size
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, dims, ok := strings.Cut(part, ":")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("size %q: expected label:WxH", part)
		}
		w, h, err := parseDims(dims)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", part, err)
		}
		if seen[label] {
			return nil, fmt.Errorf("size label %q declared twice", label)
		}
		seen[label] = true
		out = append(out, Size{Label: label, Width: w, Height: h})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sizes in %q", raw)
	}
	return out, nil
}

func parseDims(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH")
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("bad width %q", ws)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("bad height %q", hs)
	}
	return w, h, nil
}

// MustParseSizes is for compiled-in defaults.
func MustParseSizes(raw string) []Size {
	s, err := ParseSizes(raw)
	if err != nil {
		panic(err)
	}
	return s
}
