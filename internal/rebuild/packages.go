package rebuild

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/redoxforge/redoxforge/internal/manifest"
)

// IndexEntry is one package in the store index.
type IndexEntry struct {
	Version   string `json:"version"`
	StorePath string `json:"storePath"`
}

// PackageIndex maps package names to their store locations. It is loaded
// from the packages.json file the package fetcher maintains.
type PackageIndex map[string]IndexEntry

// LoadPackageIndex reads packages.json. A missing file yields an empty
// index: every package then resolves with a warning instead of failing the
// whole rebuild.
func LoadPackageIndex(path string) (PackageIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PackageIndex{}, nil
		}
		return nil, fmt.Errorf("reading package index: %w", err)
	}
	var idx PackageIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing package index %s: %w", path, err)
	}
	return idx, nil
}

// Resolve maps package names to manifest entries. Names missing from the
// index are still listed, with empty version and store path, and produce a
// warning each. Output is sorted by name.
func (idx PackageIndex) Resolve(names []string) ([]manifest.Package, []string) {
	seen := map[string]bool{}
	var packages []manifest.Package
	var warnings []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		entry, ok := idx[name]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("package %q not found in package index", name))
			packages = append(packages, manifest.Package{Name: name})
			continue
		}
		packages = append(packages, manifest.Package{
			Name:      name,
			Version:   entry.Version,
			StorePath: entry.StorePath,
		})
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, warnings
}
