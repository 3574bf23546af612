package config

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// minRootSizeMB is the smallest root partition worth formatting.
const minRootSizeMB = 16

// ValidationError collects every problem found in one pass so the user can
// fix them all at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// Validate checks the merged configuration. It returns non-fatal warnings
// and an error listing every hard failure.
func Validate(cfg *Config) ([]string, error) {
	var problems []string
	var warnings []string

	if cfg.System.Hostname == "" {
		problems = append(problems, "system hostname must not be empty")
	}

	if cfg.Boot.ESPSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("ESP size must be positive, got %d MiB", cfg.Boot.ESPSizeMB))
	}
	if cfg.Boot.DiskSizeMB <= cfg.Boot.ESPSizeMB {
		problems = append(problems, fmt.Sprintf(
			"disk size (%d MiB) must be larger than the ESP (%d MiB)",
			cfg.Boot.DiskSizeMB, cfg.Boot.ESPSizeMB))
	} else if cfg.Boot.DiskSizeMB-cfg.Boot.ESPSizeMB < minRootSizeMB {
		problems = append(problems, fmt.Sprintf(
			"root partition would be %d MiB, need at least %d MiB",
			cfg.Boot.DiskSizeMB-cfg.Boot.ESPSizeMB, minRootSizeMB))
	}

	if cfg.Graphics.Enable && !hasPackage(cfg.Packages, "orbital") {
		problems = append(problems, "graphics is enabled but the orbital package is not installed")
	}

	switch cfg.Networking.Mode {
	case NetModeAuto, NetModeDHCP, NetModeNone:
	case NetModeStatic:
		if len(cfg.Networking.Interfaces) == 0 {
			problems = append(problems, "static networking requires at least one interface block")
		}
		for _, iface := range sortedInterfaces(cfg.Networking.Interfaces) {
			if net.ParseIP(iface.addr.Address) == nil {
				problems = append(problems, fmt.Sprintf("interface %s: invalid address %q", iface.name, iface.addr.Address))
			}
			if iface.addr.Gateway != "" && net.ParseIP(iface.addr.Gateway) == nil {
				problems = append(problems, fmt.Sprintf("interface %s: invalid gateway %q", iface.name, iface.addr.Gateway))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown networking mode %q", cfg.Networking.Mode))
	}
	for _, server := range cfg.Networking.DNS {
		if net.ParseIP(server) == nil {
			problems = append(problems, fmt.Sprintf("invalid DNS server %q", server))
		}
	}

	problems = append(problems, validateUsers(cfg, &warnings)...)
	problems = append(problems, validateServices(cfg)...)

	if len(problems) > 0 {
		return warnings, &ValidationError{Problems: problems}
	}
	return warnings, nil
}

func validateUsers(cfg *Config, warnings *[]string) []string {
	var problems []string
	seenUID := map[int]string{}
	for _, name := range sortedKeys(cfg.Users) {
		u := cfg.Users[name]
		if u.UID < 0 || u.GID < 0 {
			problems = append(problems, fmt.Sprintf("user %s: uid and gid must be non-negative", name))
		}
		if u.Home == "" {
			problems = append(problems, fmt.Sprintf("user %s: home directory must not be empty", name))
		}
		if prev, dup := seenUID[u.UID]; dup {
			*warnings = append(*warnings, fmt.Sprintf("users %s and %s share uid %d", prev, name, u.UID))
		} else {
			seenUID[u.UID] = name
		}
	}
	for _, name := range sortedKeys(cfg.Groups) {
		g := cfg.Groups[name]
		if g.GID < 0 {
			problems = append(problems, fmt.Sprintf("group %s: gid must be non-negative", name))
		}
		for _, member := range g.Members {
			if _, ok := cfg.Users[member]; !ok && member != "root" {
				problems = append(problems, fmt.Sprintf("group %s: member %q is not a defined user", name, member))
			}
		}
	}
	return problems
}

func validateServices(cfg *Config) []string {
	var problems []string
	for _, name := range sortedKeys(cfg.Services) {
		svc := cfg.Services[name]
		if svc.Command == "" {
			problems = append(problems, fmt.Sprintf("service %s: command must not be empty", name))
		}
		switch svc.Type {
		case ServiceOneshot, ServiceDaemon, ServiceNowait, ServiceScheme:
		default:
			problems = append(problems, fmt.Sprintf("service %s: unknown type %q", name, svc.Type))
		}
		switch svc.WantedBy {
		case WantedByInitfs, WantedByRootfs:
		default:
			problems = append(problems, fmt.Sprintf("service %s: unknown wanted_by %q", name, svc.WantedBy))
		}
	}
	return problems
}

func hasPackage(packages []string, name string) bool {
	for _, p := range packages {
		if p == name {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type namedInterface struct {
	name string
	addr Interface
}

func sortedInterfaces(m map[string]Interface) []namedInterface {
	out := make([]namedInterface, 0, len(m))
	for _, name := range sortedKeys(m) {
		out = append(out, namedInterface{name: name, addr: m[name]})
	}
	return out
}
