// Package manifest defines the system manifest: the durable record of what a
// built image contains, from merged configuration down to per-file hashes.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/redoxforge/redoxforge/internal/config"
)

// SchemaVersion is bumped when the manifest layout changes incompatibly.
const SchemaVersion = 1

// Path is where the manifest lives inside a built root tree, and
// GenerationsDir is where prior generations are kept.
const (
	Path           = "etc/redox-system/manifest.json"
	GenerationsDir = "etc/redox-system/generations"
)

type Manifest struct {
	ManifestVersion int                     `json:"manifestVersion"`
	System          config.System           `json:"system"`
	Generation      Generation              `json:"generation"`
	Configuration   Configuration           `json:"configuration"`
	Packages        []Package               `json:"packages"`
	Drivers         Drivers                 `json:"drivers"`
	Users           map[string]config.User  `json:"users"`
	Groups          map[string]config.Group `json:"groups"`
	Services        Services                `json:"services"`
	Files           map[string]FileInfo     `json:"files"`
}

// Generation identifies one numbered build of the system.
type Generation struct {
	ID          uint64 `json:"id"`
	BuildHash   string `json:"buildHash"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// Configuration is the subset of the merged config that shapes the image.
type Configuration struct {
	Boot       config.Boot       `json:"boot"`
	Hardware   config.Hardware   `json:"hardware"`
	Networking config.Networking `json:"networking"`
	Graphics   config.Graphics   `json:"graphics"`
	Security   config.Security   `json:"security"`
	Logging    config.Logging    `json:"logging"`
	Power      config.Power      `json:"power"`
}

// Package is an installed package resolved against the package store.
type Package struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	StorePath string `json:"storePath"`
}

// Drivers records which drivers the image carries and where they live.
type Drivers struct {
	All    []string `json:"all"`
	Initfs []string `json:"initfs"`
	Core   []string `json:"core"`
}

// Services records the installed init script names plus the UEFI startup
// script.
type Services struct {
	InitScripts   []string `json:"initScripts"`
	StartupScript string   `json:"startupScript"`
}

// FileInfo is the integrity record for one tracked file. Mode is the octal
// permission string, e.g. "644".
type FileInfo struct {
	Blake3 string `json:"blake3"`
	Size   int64  `json:"size"`
	Mode   string `json:"mode"`
}

// coreDrivers are scheme daemons every image needs regardless of hardware.
var coreDrivers = []string{"logd", "ramfs", "zerod", "nulld", "randd"}

// New builds a manifest skeleton from a merged configuration. Generation,
// packages, services and files are filled in by later build stages.
func New(cfg *config.Config) *Manifest {
	all := make([]string, 0,
		len(cfg.Hardware.StorageDrivers)+len(cfg.Hardware.NetworkDrivers)+
			len(cfg.Hardware.GraphicsDrivers)+len(cfg.Hardware.AudioDrivers))
	all = append(all, cfg.Hardware.StorageDrivers...)
	all = append(all, cfg.Hardware.NetworkDrivers...)
	all = append(all, cfg.Hardware.GraphicsDrivers...)
	all = append(all, cfg.Hardware.AudioDrivers...)

	return &Manifest{
		ManifestVersion: SchemaVersion,
		System:          cfg.System,
		Configuration: Configuration{
			Boot:       cfg.Boot,
			Hardware:   cfg.Hardware,
			Networking: cfg.Networking,
			Graphics:   cfg.Graphics,
			Security:   cfg.Security,
			Logging:    cfg.Logging,
			Power:      cfg.Power,
		},
		Drivers: Drivers{
			All: all,
			// Storage drivers must be present before the root filesystem
			// is mounted.
			Initfs: append([]string(nil), cfg.Hardware.StorageDrivers...),
			Core:   append([]string(nil), coreDrivers...),
		},
		Users:  cfg.Users,
		Groups: cfg.Groups,
		Services: Services{
			InitScripts: []string{},
		},
		Files: map[string]FileInfo{},
	}
}

// Config reconstructs a merged configuration from the manifest, the starting
// point for rebuild merges.
func (m *Manifest) Config() config.Config {
	pkgs := make([]string, len(m.Packages))
	for i, p := range m.Packages {
		pkgs[i] = p.Name
	}
	return config.Config{
		System:     m.System,
		Boot:       m.Configuration.Boot,
		Hardware:   m.Configuration.Hardware,
		Networking: m.Configuration.Networking,
		Graphics:   m.Configuration.Graphics,
		Security:   m.Configuration.Security,
		Logging:    m.Configuration.Logging,
		Power:      m.Configuration.Power,
		Packages:   pkgs,
		Users:      m.Users,
		Groups:     m.Groups,
	}
}

// PackageNames returns the installed package names in manifest order.
func (m *Manifest) PackageNames() []string {
	names := make([]string, len(m.Packages))
	for i, p := range m.Packages {
		names[i] = p.Name
	}
	return names
}

// SortPackages orders the package list by name for stable output.
func (m *Manifest) SortPackages() {
	sort.Slice(m.Packages, func(i, j int) bool { return m.Packages[i].Name < m.Packages[j].Name })
}

// Stamp assigns generation metadata: id, description, an RFC3339 timestamp
// and a build hash derived from everything except the generation block
// itself.
func (m *Manifest) Stamp(id uint64, description string) error {
	m.Generation = Generation{}
	hash, err := m.contentHash()
	if err != nil {
		return err
	}
	m.Generation = Generation{
		ID:          id,
		BuildHash:   hash,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return nil
}

func (m *Manifest) contentHash() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("hashing manifest: %w", err)
	}
	return HashBytes(data), nil
}

// Load reads a manifest from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.ManifestVersion > SchemaVersion {
		return nil, fmt.Errorf("manifest %s has version %d, this tool understands up to %d",
			path, m.ManifestVersion, SchemaVersion)
	}
	return &m, nil
}

// Save writes the manifest as indented JSON, creating parent directories.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
