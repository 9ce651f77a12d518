package mathrender

import (
	"fmt"
	"sync"
)

// Format is the output mode selected by the user.
type Format string

const (
	FormatMathLive Format = "mathlive"
	FormatSVG      Format = "svg"
	FormatPNG      Format = "png"
)

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatMathLive, FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q: must be one of mathlive, svg, png", s)
	}
}

// Settings is the render configuration passed into every render call.
type Settings struct {
	OutputFormat       Format  `json:"output_format"`
	UseAlternateEngine bool    `json:"use_alternate_engine"`
	ImageScale         float64 `json:"image_scale,omitempty"`
}

// DefaultSettings renders SVG images through the alternate engine.
func DefaultSettings() Settings {
	return Settings{
		OutputFormat:       FormatSVG,
		UseAlternateEngine: true,
		ImageScale:         1.5,
	}
}

// Validate checks the format and scale.
func (s Settings) Validate() error {
	if _, err := ParseFormat(string(s.OutputFormat)); err != nil {
		return err
	}
	if s.ImageScale < 0 {
		return fmt.Errorf("image_scale must be non-negative")
	}
	return nil
}

// LiveWidget reports whether math is left for the live widget engine.
func (s Settings) LiveWidget() bool {
	return s.OutputFormat == FormatMathLive
}

// SettingsHolder stores the user's current selection for a process. Callers
// read it once and pass the value down; nothing in the render path reads
// it directly.
type SettingsHolder struct {
	mu sync.RWMutex
	s  Settings
}

// NewSettingsHolder returns a holder initialized to s.
func NewSettingsHolder(s Settings) *SettingsHolder {
	return &SettingsHolder{s: s}
}

// Get returns the current settings.
func (h *SettingsHolder) Get() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Set validates and stores s.
func (h *SettingsHolder) Set(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.s = s
	return nil
}
