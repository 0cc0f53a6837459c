package api

import (
	"fmt"
	"strings"

	"github.com/narqo/go-badge"
)

// Named badge colors, matching the shields.io vocabulary.
const (
	ColorSuccess  = "success"
	ColorCritical = "critical"
)

var namedColors = map[string]badge.Color{
	ColorSuccess:    badge.ColorBrightgreen,
	ColorCritical:   badge.ColorRed,
	"informational": badge.ColorBlue,
	"important":     badge.ColorOrange,
	"inactive":      badge.ColorLightgrey,
}

// Badge is a two-field flat SVG badge.
type Badge struct {
	Label   string
	Message string
	Color   string
}

// RenderBadge renders b as a flat SVG badge. Color may be a named color or
// a CSS hex value.
func RenderBadge(b Badge) ([]byte, error) {
	color, err := resolveColor(b.Color)
	if err != nil {
		return nil, err
	}
	svg, err := badge.RenderBytes(b.Label, b.Message, color)
	if err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}
	return svg, nil
}

func resolveColor(c string) (badge.Color, error) {
	if c == "" {
		return namedColors[ColorSuccess], nil
	}
	if named, ok := namedColors[c]; ok {
		return named, nil
	}
	if strings.HasPrefix(c, "#") && (len(c) == 4 || len(c) == 7) && strings.Trim(c[1:], "0123456789abcdefABCDEF") == "" {
		return badge.Color(c), nil
	}
	return "", fmt.Errorf("unknown badge color %q", c)
}
