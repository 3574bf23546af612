// Package scaffold creates a starter project: a system.hcl to edit and a
// forge.toml pointing at the default artifact locations.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redoxforge/redoxforge/internal/config"
)

type Options struct {
	Dir      string
	Hostname string
	Profile  string
}

const systemTemplate = `# Declarative system configuration. Settings here override the %q profile.

hostname = %q
timezone = "UTC"

boot {
  disk_size_mb = 768
  esp_size_mb  = 200
}

networking {
  mode = "dhcp"
}

user "user" {
  uid  = 1000
  gid  = 1000
  home = "/home/user"
}

# service "sshd" {
#   command   = "/bin/sshd"
#   type      = "daemon"
#   wanted_by = "rootfs"
# }
`

const forgeTemplate = `# Tool settings: artifact locations and external tool names.

output_dir = "output"
profile    = %q

[artifacts]
kernel        = "artifacts/kernel"
bootloader    = "artifacts/bootloader.efi"
store_dir     = "artifacts/store"
package_index = "artifacts/packages.json"
`

// Create writes the starter files. Existing files are never overwritten:
// hitting one is an error naming it.
func Create(opts Options) error {
	if opts.Hostname == "" {
		opts.Hostname = "redox"
	}
	if opts.Profile == "" {
		opts.Profile = "minimal"
	}
	if _, err := config.Profile(opts.Profile); err != nil {
		return err
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("creating project dir: %w", err)
		}
	}

	files := map[string]string{
		"system.hcl": fmt.Sprintf(systemTemplate, opts.Profile, opts.Hostname),
		"forge.toml": fmt.Sprintf(forgeTemplate, opts.Profile),
	}
	for _, name := range []string{"system.hcl", "forge.toml"} {
		path := filepath.Join(opts.Dir, name)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
