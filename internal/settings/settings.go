// Package settings loads the tool's own configuration from forge.toml:
// artifact locations, external tool names and output paths. This is
// distinct from the declarative system configuration in system.hcl.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the settings file name looked up in the working directory.
const DefaultFile = "forge.toml"

type Settings struct {
	// OutputDir receives built images and staged trees.
	OutputDir string `toml:"output_dir"`
	// SystemRoot is the installed system tree holding the current manifest
	// and generations. For image builds it is the staged root inside
	// OutputDir; for a running system it is /.
	SystemRoot string `toml:"system_root"`
	Profile    string `toml:"profile"`

	Artifacts Artifacts `toml:"artifacts"`
	Tools     Tools     `toml:"tools"`
	VM        VM        `toml:"vm"`
}

// Artifacts are the prebuilt inputs an image is assembled from.
type Artifacts struct {
	Kernel       string `toml:"kernel"`
	Bootloader   string `toml:"bootloader"`
	StoreDir     string `toml:"store_dir"`
	PackageIndex string `toml:"package_index"`
}

// Tools names the external programs the assembler shells out to.
type Tools struct {
	Sgdisk   string `toml:"sgdisk"`
	MkfsVfat string `toml:"mkfs_vfat"`
	Mcopy    string `toml:"mcopy"`
	Mmd      string `toml:"mmd"`
	RedoxFS  string `toml:"redoxfs_ar"`
	InitFS   string `toml:"initfs_ar"`
}

// VM names the virtual machine monitors used for boot testing.
type VM struct {
	Qemu            string `toml:"qemu"`
	CloudHypervisor string `toml:"cloud_hypervisor"`
	OVMF            string `toml:"ovmf"`
	Memory          string `toml:"memory"`
}

// Defaults returns the settings used when no forge.toml exists.
func Defaults() Settings {
	return Settings{
		OutputDir:  "output",
		SystemRoot: filepath.Join("output", "rootfs"),
		Profile:    "minimal",
		Artifacts: Artifacts{
			Kernel:       filepath.Join("artifacts", "kernel"),
			Bootloader:   filepath.Join("artifacts", "bootloader.efi"),
			StoreDir:     filepath.Join("artifacts", "store"),
			PackageIndex: filepath.Join("artifacts", "packages.json"),
		},
		Tools: Tools{
			Sgdisk:   "sgdisk",
			MkfsVfat: "mkfs.vfat",
			Mcopy:    "mcopy",
			Mmd:      "mmd",
			RedoxFS:  "redoxfs-ar",
			InitFS:   "redox-initfs-ar",
		},
		VM: VM{
			Qemu:            "qemu-system-x86_64",
			CloudHypervisor: "cloud-hypervisor",
			OVMF:            "/usr/share/OVMF/OVMF_CODE.fd",
			Memory:          "2048M",
		},
	}
}

// Load reads path, filling unset fields from the defaults. A missing file
// returns the defaults unchanged.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// ImagePath is where the assembled disk image is written.
func (s Settings) ImagePath() string {
	return filepath.Join(s.OutputDir, "redox.img")
}

// InitfsPath is where the initfs archive is written.
func (s Settings) InitfsPath() string {
	return filepath.Join(s.OutputDir, "initfs.img")
}
