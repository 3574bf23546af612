package manifest

import (
	"fmt"
	"sort"
)

// fileDiffCap limits how many per-file changes a diff prints.
const fileDiffCap = 20

// Diff compares this manifest (the "from" side) against other and returns
// human-readable change lines, grouped by area. An empty slice means the two
// manifests describe the same system.
func (m *Manifest) Diff(other *Manifest) []string {
	var lines []string

	lines = append(lines, diffSystem(m, other)...)
	lines = append(lines, diffConfiguration(m, other)...)
	lines = append(lines, diffPackages(m, other)...)
	lines = append(lines, diffStringSets("drivers", m.Drivers.All, other.Drivers.All)...)
	lines = append(lines, diffUsers(m, other)...)
	lines = append(lines, diffFiles(m, other)...)

	return lines
}

func diffSystem(a, b *Manifest) []string {
	var lines []string
	add := func(field, from, to string) {
		if from != to {
			lines = append(lines, fmt.Sprintf("  %s: %s -> %s", field, from, to))
		}
	}
	add("hostname", a.System.Hostname, b.System.Hostname)
	add("timezone", a.System.Timezone, b.System.Timezone)
	add("profile", a.System.Profile, b.System.Profile)
	add("version", a.System.Version, b.System.Version)
	if len(lines) == 0 {
		return nil
	}
	return append([]string{"system:"}, lines...)
}

func diffConfiguration(a, b *Manifest) []string {
	var lines []string
	add := func(field string, from, to any) {
		if fmt.Sprint(from) != fmt.Sprint(to) {
			lines = append(lines, fmt.Sprintf("  %s: %v -> %v", field, from, to))
		}
	}
	ac, bc := a.Configuration, b.Configuration
	add("boot.diskSizeMB", ac.Boot.DiskSizeMB, bc.Boot.DiskSizeMB)
	add("boot.espSizeMB", ac.Boot.ESPSizeMB, bc.Boot.ESPSizeMB)
	add("networking.enabled", ac.Networking.Enable, bc.Networking.Enable)
	add("networking.mode", ac.Networking.Mode, bc.Networking.Mode)
	add("networking.dns", ac.Networking.DNS, bc.Networking.DNS)
	add("graphics.enabled", ac.Graphics.Enable, bc.Graphics.Enable)
	add("graphics.resolution", ac.Graphics.Resolution, bc.Graphics.Resolution)
	add("security.requirePasswords", ac.Security.RequirePasswords, bc.Security.RequirePasswords)
	add("security.allowRemoteRoot", ac.Security.AllowRemoteRoot, bc.Security.AllowRemoteRoot)
	add("logging.logLevel", ac.Logging.Level, bc.Logging.Level)
	add("power.powerAction", ac.Power.PowerAction, bc.Power.PowerAction)
	if len(lines) == 0 {
		return nil
	}
	return append([]string{"configuration:"}, lines...)
}

func diffPackages(a, b *Manifest) []string {
	from := map[string]Package{}
	for _, p := range a.Packages {
		from[p.Name] = p
	}
	to := map[string]Package{}
	for _, p := range b.Packages {
		to[p.Name] = p
	}

	var lines []string
	for _, name := range sortedPackageNames(to) {
		p := to[name]
		prev, existed := from[name]
		switch {
		case !existed:
			lines = append(lines, fmt.Sprintf("  + %s %s", p.Name, p.Version))
		case prev.Version != p.Version:
			lines = append(lines, fmt.Sprintf("  ~ %s %s -> %s", p.Name, prev.Version, p.Version))
		}
	}
	for _, name := range sortedPackageNames(from) {
		if _, kept := to[name]; !kept {
			lines = append(lines, fmt.Sprintf("  - %s", name))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return append([]string{"packages:"}, lines...)
}

func diffStringSets(label string, a, b []string) []string {
	from := map[string]bool{}
	for _, s := range a {
		from[s] = true
	}
	to := map[string]bool{}
	for _, s := range b {
		to[s] = true
	}

	var lines []string
	for _, s := range sortedStrings(keys(to)) {
		if !from[s] {
			lines = append(lines, "  + "+s)
		}
	}
	for _, s := range sortedStrings(keys(from)) {
		if !to[s] {
			lines = append(lines, "  - "+s)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return append([]string{label + ":"}, lines...)
}

func diffUsers(a, b *Manifest) []string {
	var lines []string
	for _, name := range sortedStrings(keys(b.Users)) {
		if _, ok := a.Users[name]; !ok {
			lines = append(lines, "  + "+name)
		}
	}
	for _, name := range sortedStrings(keys(a.Users)) {
		if _, ok := b.Users[name]; !ok {
			lines = append(lines, "  - "+name)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return append([]string{"users:"}, lines...)
}

func diffFiles(a, b *Manifest) []string {
	var changes []string
	for _, p := range sortedStrings(keys(b.Files)) {
		prev, existed := a.Files[p]
		switch {
		case !existed:
			changes = append(changes, "  + "+p)
		case prev.Blake3 != b.Files[p].Blake3:
			changes = append(changes, "  M "+p)
		}
	}
	for _, p := range sortedStrings(keys(a.Files)) {
		if _, kept := b.Files[p]; !kept {
			changes = append(changes, "  - "+p)
		}
	}
	if len(changes) == 0 {
		return nil
	}
	lines := []string{"files:"}
	if len(changes) > fileDiffCap {
		lines = append(lines, changes[:fileDiffCap]...)
		lines = append(lines, fmt.Sprintf("  ... and %d more", len(changes)-fileDiffCap))
	} else {
		lines = append(lines, changes...)
	}
	return lines
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func sortedPackageNames(m map[string]Package) []string {
	return sortedStrings(keys(m))
}
