// Package generation manages numbered system snapshots: every successful
// build or rebuild becomes a generation that can be listed, compared and
// rolled back to.
package generation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/redoxforge/redoxforge/internal/manifest"
)

// ErrNoCurrent is returned when the system root has no installed manifest.
var ErrNoCurrent = errors.New("no current manifest")

// NotFoundError names a generation that does not exist and lists the ones
// that do.
type NotFoundError struct {
	ID        uint64
	Available []uint64
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("generation %d not found (no generations stored)", e.ID)
	}
	return fmt.Sprintf("generation %d not found (available: %v)", e.ID, e.Available)
}

// Store reads and writes generations under a system root.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) generationsDir() string {
	return filepath.Join(s.Root, filepath.FromSlash(manifest.GenerationsDir))
}

// CurrentPath is the installed manifest's location under the root.
func (s *Store) CurrentPath() string {
	return filepath.Join(s.Root, filepath.FromSlash(manifest.Path))
}

// Current loads the installed manifest.
func (s *Store) Current() (*manifest.Manifest, error) {
	m, err := manifest.Load(s.CurrentPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCurrent
		}
		return nil, err
	}
	return m, nil
}

// Entry is one stored generation.
type Entry struct {
	ID       uint64
	Manifest *manifest.Manifest
}

// Scan lists stored generations sorted by id. Directories that are not
// numeric or whose manifest cannot be parsed are skipped with a warning
// rather than failing the whole scan.
func (s *Store) Scan() ([]Entry, []string, error) {
	dirents, err := os.ReadDir(s.generationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("reading generations dir: %w", err)
	}

	var entries []Entry
	var warnings []string
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		id, convErr := strconv.ParseUint(de.Name(), 10, 64)
		if convErr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping non-numeric generation dir %q", de.Name()))
			continue
		}
		m, loadErr := manifest.Load(filepath.Join(s.generationsDir(), de.Name(), "manifest.json"))
		if loadErr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping generation %d: %v", id, loadErr))
			continue
		}
		entries = append(entries, Entry{ID: id, Manifest: m})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, warnings, nil
}

// Get loads one stored generation by id.
func (s *Store) Get(id uint64) (*manifest.Manifest, error) {
	path := filepath.Join(s.generationsDir(), strconv.FormatUint(id, 10), "manifest.json")
	m, err := manifest.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			entries, _, scanErr := s.Scan()
			if scanErr != nil {
				return nil, scanErr
			}
			return nil, &NotFoundError{ID: id, Available: ids(entries)}
		}
		return nil, err
	}
	return m, nil
}

// NextID returns one past the highest generation seen, counting both the
// stored generations and the installed manifest.
func (s *Store) NextID() (uint64, error) {
	entries, _, err := s.Scan()
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, e := range entries {
		if e.ID > max {
			max = e.ID
		}
	}
	if current, err := s.Current(); err == nil {
		if current.Generation.ID > max {
			max = current.Generation.ID
		}
	} else if !errors.Is(err, ErrNoCurrent) {
		return 0, err
	}
	return max + 1, nil
}

// Switch installs m as the current manifest under a fresh generation id.
// If the previously installed manifest was never stored as a generation it
// is stored first, so a rollback can always reach it.
func (s *Store) Switch(m *manifest.Manifest, description string) (uint64, error) {
	if current, err := s.Current(); err == nil {
		if err := s.preserve(current); err != nil {
			return 0, err
		}
	} else if !errors.Is(err, ErrNoCurrent) {
		return 0, err
	}

	id, err := s.NextID()
	if err != nil {
		return 0, err
	}
	if err := m.Stamp(id, description); err != nil {
		return 0, err
	}
	if err := s.save(m); err != nil {
		return 0, err
	}
	if err := m.Save(s.CurrentPath()); err != nil {
		return 0, err
	}
	return id, nil
}

// Rollback re-activates an older generation as a new one. With target zero
// it picks the most recent stored generation below the current id. The
// restored manifest is saved as a NEW generation, never by rewinding ids.
func (s *Store) Rollback(target uint64) (*manifest.Manifest, uint64, error) {
	current, err := s.Current()
	if err != nil {
		return nil, 0, err
	}

	if target == 0 {
		entries, _, err := s.Scan()
		if err != nil {
			return nil, 0, err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].ID < current.Generation.ID {
				target = entries[i].ID
				break
			}
		}
		if target == 0 {
			return nil, 0, fmt.Errorf("no generation older than current (%d) to roll back to",
				current.Generation.ID)
		}
	}

	restored, err := s.Get(target)
	if err != nil {
		return nil, 0, err
	}
	id, err := s.Switch(restored, fmt.Sprintf("rollback to generation %d", target))
	if err != nil {
		return nil, 0, err
	}
	return restored, id, nil
}

// preserve stores a manifest under its own generation id if not already
// stored.
func (s *Store) preserve(m *manifest.Manifest) error {
	path := filepath.Join(s.generationsDir(), strconv.FormatUint(m.Generation.ID, 10), "manifest.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return m.Save(path)
}

func (s *Store) save(m *manifest.Manifest) error {
	path := filepath.Join(s.generationsDir(), strconv.FormatUint(m.Generation.ID, 10), "manifest.json")
	return m.Save(path)
}

func ids(entries []Entry) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
