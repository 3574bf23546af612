package rootfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redoxforge/redoxforge/internal/config"
	"github.com/redoxforge/redoxforge/internal/manifest"
)

// Stager writes a root file tree for a configuration. StoreDir, when set,
// is the package store that binaries are copied out of; packages whose
// store path is missing are skipped rather than failing the stage.
type Stager struct {
	Config   *config.Config
	Manifest *manifest.Manifest
	StoreDir string
}

// Stage renders everything into dest and records the rendered scripts and
// the file inventory in the manifest. The manifest itself is not written
// here: it must land in the tree last, once the inventory is complete.
// An existing tree at dest is cleared first, except for the generation
// store, so files from a previous build cannot leak into this one.
func (s *Stager) Stage(dest string) error {
	if err := cleanTree(dest); err != nil {
		return err
	}
	for _, dir := range []string{"bin", "etc/init.d", "home", "root", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dest, filepath.FromSlash(dir)), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := s.copyPackages(dest); err != nil {
		return err
	}
	if err := s.writeEtc(dest); err != nil {
		return err
	}
	if err := s.writeInitScripts(dest); err != nil {
		return err
	}
	if err := s.createHomes(dest); err != nil {
		return err
	}

	files, err := manifest.InventoryTree(dest)
	if err != nil {
		return err
	}
	s.Manifest.Files = files
	return nil
}

func (s *Stager) writeEtc(dest string) error {
	shadow, err := RenderShadow(s.Config.Users)
	if err != nil {
		return err
	}
	etc := map[string]string{
		"etc/passwd":   RenderPasswd(s.Config.Users),
		"etc/shadow":   shadow,
		"etc/group":    RenderGroup(s.Config.Groups),
		"etc/hostname": s.Config.System.Hostname + "\n",
		"etc/timezone": s.Config.System.Timezone + "\n",
	}
	if s.Config.Networking.Enable {
		etc["etc/dns"] = RenderDNS(s.Config.Networking.DNS)
		for rel, content := range netFiles(&s.Config.Networking) {
			etc[rel] = content
		}
	}
	if s.Config.Programs.Editor != "" {
		etc["etc/editor"] = s.Config.Programs.Editor + "\n"
	}

	for rel, content := range etc {
		mode := os.FileMode(0644)
		if rel == "etc/shadow" {
			mode = 0600
		}
		if err := writeFile(dest, rel, content, mode); err != nil {
			return err
		}
	}
	return nil
}

// netFiles renders the /etc/net settings the network stack reads at boot.
// Static mode pins the first interface's address, subnet and gateway; the
// other modes leave the files absent so the stack configures itself.
func netFiles(net *config.Networking) map[string]string {
	if net.Mode != config.NetModeStatic || len(net.Interfaces) == 0 {
		return nil
	}
	name := sortedKeys(net.Interfaces)[0]
	iface := net.Interfaces[name]
	files := map[string]string{
		"etc/net/ip":        iface.Address + "\n",
		"etc/net/ip_subnet": iface.Netmask + "\n",
	}
	if iface.Gateway != "" {
		files["etc/net/ip_router"] = iface.Gateway + "\n"
	}
	return files
}

func (s *Stager) writeInitScripts(dest string) error {
	scripts := RenderInitScripts(s.Config)
	s.Manifest.Services.InitScripts = sortedKeys(scripts)
	s.Manifest.Services.StartupScript = RenderStartupScript(s.Config)

	for name, content := range scripts {
		if err := writeFile(dest, "etc/init.d/"+name, content, 0755); err != nil {
			return err
		}
	}
	return nil
}

// cleanTree empties a previously staged tree. etc/redox-system is kept: the
// generation history and current manifest belong to the store, not the
// build.
func cleanTree(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cleaning %s: %w", dest, err)
	}
	for _, e := range entries {
		if e.Name() != "etc" {
			if err := os.RemoveAll(filepath.Join(dest, e.Name())); err != nil {
				return fmt.Errorf("cleaning %s: %w", e.Name(), err)
			}
			continue
		}
		etcEntries, err := os.ReadDir(filepath.Join(dest, "etc"))
		if err != nil {
			return fmt.Errorf("cleaning etc: %w", err)
		}
		for _, ee := range etcEntries {
			if ee.Name() == "redox-system" {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dest, "etc", ee.Name())); err != nil {
				return fmt.Errorf("cleaning etc/%s: %w", ee.Name(), err)
			}
		}
	}
	return nil
}

func (s *Stager) createHomes(dest string) error {
	for _, name := range sortedKeys(s.Config.Users) {
		u := s.Config.Users[name]
		if !u.CreateHome || u.Home == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Join(dest, filepath.FromSlash(u.Home)), 0755); err != nil {
			return fmt.Errorf("creating home for %s: %w", name, err)
		}
	}
	return nil
}

// copyPackages merges each resolved package's store tree into dest.
// Packages without a store path, or whose store path does not exist, are
// optional binaries and are skipped.
func (s *Stager) copyPackages(dest string) error {
	if s.StoreDir == "" {
		return nil
	}
	for _, pkg := range s.Manifest.Packages {
		if pkg.StorePath == "" {
			continue
		}
		src := pkg.StorePath
		if !filepath.IsAbs(src) {
			src = filepath.Join(s.StoreDir, src)
		}
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyTree(src, dest); err != nil {
			return fmt.Errorf("copying package %s: %w", pkg.Name, err)
		}
	}
	return nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeFile(dest, rel, content string, mode os.FileMode) error {
	full := filepath.Join(dest, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}
