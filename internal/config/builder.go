package config

import (
	"errors"
	"fmt"
)

// ErrNoConfig is returned when a required configuration file is missing.
var ErrNoConfig = errors.New("no configuration file found")

// UnknownProfileError names a profile that does not exist.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown profile %q (choose one of %v)", e.Name, ProfileNames())
}

// Builder assembles a Config from ordered layers. Precedence is fixed by
// application order: built-in defaults, then the profile, then the user's
// file, then command-line overrides. Later layers win.
type Builder struct {
	base   Config
	layers []layer
	err    error
}

type layer struct {
	name    string
	overlay *Overlay
}

// NewBuilder starts from the built-in defaults.
func NewBuilder() *Builder {
	return &Builder{base: Defaults()}
}

// WithProfile applies a named built-in profile.
func (b *Builder) WithProfile(name string) *Builder {
	if b.err != nil {
		return b
	}
	overlay, err := Profile(name)
	if err != nil {
		b.err = err
		return b
	}
	b.base.System.Profile = name
	b.layers = append(b.layers, layer{name: "profile:" + name, overlay: overlay})
	return b
}

// WithFile applies the user's configuration file.
func (b *Builder) WithFile(path string) *Builder {
	if b.err != nil {
		return b
	}
	overlay, err := LoadOverlay(path)
	if err != nil {
		b.err = err
		return b
	}
	b.layers = append(b.layers, layer{name: "file:" + path, overlay: overlay})
	return b
}

// WithOverlay applies an already-decoded overlay, used for command-line
// overrides and bridge requests.
func (b *Builder) WithOverlay(name string, overlay *Overlay) *Builder {
	if b.err != nil || overlay == nil {
		return b
	}
	b.layers = append(b.layers, layer{name: name, overlay: overlay})
	return b
}

// Layers returns the names of the applied layers in order, defaults first.
func (b *Builder) Layers() []string {
	names := make([]string, 0, len(b.layers)+1)
	names = append(names, "defaults")
	for _, l := range b.layers {
		names = append(names, l.name)
	}
	return names
}

// Build applies all layers in order and validates the result. Validation
// warnings are returned even on success.
func (b *Builder) Build() (Config, []string, error) {
	if b.err != nil {
		return Config{}, nil, b.err
	}
	cfg := b.base
	for _, l := range b.layers {
		l.overlay.Apply(&cfg)
	}
	warnings, err := Validate(&cfg)
	if err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}
