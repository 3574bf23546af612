package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// VerifyResult summarizes an integrity check of a root tree against the
// manifest's file inventory.
type VerifyResult struct {
	Verified int
	Modified []string
	Missing  []string
}

// OK reports whether every tracked file was present and unchanged.
func (r *VerifyResult) OK() bool {
	return len(r.Modified) == 0 && len(r.Missing) == 0
}

func (r *VerifyResult) String() string {
	if r.OK() {
		return fmt.Sprintf("%d files verified", r.Verified)
	}
	return fmt.Sprintf("%d files verified, %d modified, %d missing",
		r.Verified, len(r.Modified), len(r.Missing))
}

// Verify re-hashes every tracked file under root and compares against the
// recorded inventory.
func (m *Manifest) Verify(root string) (*VerifyResult, error) {
	result := &VerifyResult{}
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		want := m.Files[p]
		full := filepath.Join(root, filepath.FromSlash(cleanPath(p)))
		if _, err := os.Stat(full); err != nil {
			if os.IsNotExist(err) {
				result.Missing = append(result.Missing, p)
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", p, err)
		}
		hash, err := HashFile(full)
		if err != nil {
			return nil, err
		}
		if hash != want.Blake3 {
			result.Modified = append(result.Modified, p)
			continue
		}
		result.Verified++
	}
	return result, nil
}
