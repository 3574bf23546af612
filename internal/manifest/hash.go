package manifest

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// HashBytes returns the BLAKE3 hex digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the BLAKE3 hex digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// InventoryTree hashes every regular file under root and returns a files map
// keyed by slash-separated paths relative to root. The manifest itself and
// stored generations are skipped: they describe the tree, they are not part
// of it. Symlinks are skipped too.
func InventoryTree(root string) (map[string]FileInfo, error) {
	files := map[string]FileInfo{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == GenerationsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || rel == Path {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := HashFile(path)
		if err != nil {
			return err
		}
		files[rel] = FileInfo{
			Blake3: hash,
			Size:   info.Size(),
			Mode:   strconv.FormatUint(uint64(info.Mode().Perm()), 8),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventorying %s: %w", root, err)
	}
	return files, nil
}

// ShortHash abbreviates a hex digest for display.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// cleanPath normalizes a tracked file path to the manifest's slash form.
func cleanPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "/")
}
