// Package rebuild turns an override configuration plus the current manifest
// into a new manifest, preserving everything the override does not mention.
package rebuild

import (
	"fmt"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
)

// Plan is a prepared rebuild: the new manifest plus everything worth
// showing the user before applying it.
type Plan struct {
	Current  *manifest.Manifest
	New      *manifest.Manifest
	Changes  []string
	Warnings []string
}

// HasChanges reports whether applying the plan would alter the system.
func (p *Plan) HasChanges() bool {
	return len(p.Changes) > 0
}

// Prepare merges the overlay over the current manifest's configuration and
// builds the resulting manifest. Boot-essential packages survive any package
// replacement, and replaced users regenerate the group map.
func Prepare(current *manifest.Manifest, overlay *config.Overlay, idx PackageIndex) (*Plan, error) {
	cfg := current.Config()
	overlay.Apply(&cfg)

	if overlay.Packages != nil {
		cfg.Packages = preserveEssentials(cfg.Packages, current.PackageNames())
	}

	warnings, err := config.Validate(&cfg)
	if err != nil {
		return nil, fmt.Errorf("merged configuration is invalid: %w", err)
	}

	next := manifest.New(&cfg)
	packages, pkgWarnings := idx.Resolve(cfg.Packages)
	next.Packages = packages
	warnings = append(warnings, pkgWarnings...)

	return &Plan{
		Current:  current,
		New:      next,
		Changes:  current.Diff(next),
		Warnings: warnings,
	}, nil
}

// preserveEssentials returns the requested package set plus any
// boot-essential package that was installed before. Order is requested
// packages first, then restored essentials.
func preserveEssentials(requested, installed []string) []string {
	have := map[string]bool{}
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		if have[name] {
			continue
		}
		have[name] = true
		out = append(out, name)
	}
	for _, name := range installed {
		if config.IsBootEssential(name) && !have[name] {
			have[name] = true
			out = append(out, name)
		}
	}
	return out
}
