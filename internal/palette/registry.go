package palette

import (
	"embed"
	"fmt"
	"sync"

	"marginalia/internal/domain/models/annotation"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Swatch is one selectable annotation color
type Swatch struct {
	Name        annotation.Color `yaml:"name" json:"name"`
	DisplayName string           `yaml:"display_name" json:"display_name"`
	Class       string           `yaml:"class" json:"class"` // CSS class suffix used by marker spans
}

type file struct {
	Colors        []Swatch                             `yaml:"colors"`
	Defaults      map[annotation.Kind]annotation.Color `yaml:"defaults"`
	FallbackClass string                               `yaml:"fallback_class"`
}

// Registry holds the fixed color palette and per-kind defaults
type Registry struct {
	swatches      []Swatch
	byName        map[annotation.Color]Swatch
	defaults      map[annotation.Kind]annotation.Color
	fallbackClass string
	mu            sync.RWMutex
}

// NewRegistry loads the embedded palette
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/palette.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}
	return Parse(data)
}

// MustRegistry loads the embedded palette and panics on failure.
// The palette is compiled in, so failure means a broken build.
func MustRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Parse builds a registry from palette YAML
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal palette: %w", err)
	}
	if len(f.Colors) == 0 {
		return nil, fmt.Errorf("palette defines no colors")
	}

	r := &Registry{
		swatches:      f.Colors,
		byName:        make(map[annotation.Color]Swatch, len(f.Colors)),
		defaults:      make(map[annotation.Kind]annotation.Color, len(annotation.Kinds)),
		fallbackClass: f.FallbackClass,
	}
	for _, s := range f.Colors {
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate palette color: %s", s.Name)
		}
		r.byName[s.Name] = s
	}
	for _, kind := range annotation.Kinds {
		c, ok := f.Defaults[kind]
		if !ok {
			return nil, fmt.Errorf("no default color for %s", kind)
		}
		if _, known := r.byName[c]; !known {
			return nil, fmt.Errorf("default color %s for %s is not in the palette", c, kind)
		}
		r.defaults[kind] = c
	}

	return r, nil
}

// Valid reports whether c is part of the palette
func (r *Registry) Valid(c annotation.Color) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[c]
	return ok
}

// Default returns the default color for a kind
func (r *Registry) Default(kind annotation.Kind) annotation.Color {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[kind]
}

// Class maps a color to its marker CSS class, falling back for unknown colors
func (r *Registry) Class(c annotation.Color) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[c]; ok {
		return s.Class
	}
	return r.fallbackClass
}

// Swatches returns the palette in display order
func (r *Registry) Swatches() []Swatch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Swatch, len(r.swatches))
	copy(out, r.swatches)
	return out
}

// Names returns the palette color names in display order
func (r *Registry) Names() []annotation.Color {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]annotation.Color, len(r.swatches))
	for i, s := range r.swatches {
		out[i] = s.Name
	}
	return out
}
