package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Row is one line of the generation listing.
type Row struct {
	ID          uint64
	Timestamp   string
	Description string
	BuildHash   string
	Current     bool
	Stored      bool
}

// List returns the stored generations plus the installed manifest if it was
// never stored, oldest first, with the current one marked.
func (s *Store) List() ([]Row, []string, error) {
	entries, warnings, err := s.Scan()
	if err != nil {
		return nil, warnings, err
	}

	var currentID uint64
	var haveCurrent bool
	current, err := s.Current()
	switch {
	case err == nil:
		currentID = current.Generation.ID
		haveCurrent = true
	case errors.Is(err, ErrNoCurrent):
	default:
		return nil, warnings, err
	}

	rows := make([]Row, 0, len(entries)+1)
	currentStored := false
	for _, e := range entries {
		row := Row{
			ID:          e.ID,
			Timestamp:   e.Manifest.Generation.Timestamp,
			Description: e.Manifest.Generation.Description,
			BuildHash:   e.Manifest.Generation.BuildHash,
			Stored:      true,
		}
		if haveCurrent && e.ID == currentID {
			row.Current = true
			currentStored = true
		}
		rows = append(rows, row)
	}
	if haveCurrent && !currentStored {
		rows = append(rows, Row{
			ID:          currentID,
			Timestamp:   current.Generation.Timestamp,
			Description: current.Generation.Description,
			BuildHash:   current.Generation.BuildHash,
			Current:     true,
		})
	}
	return rows, warnings, nil
}

// Format renders listing rows as an aligned table.
func Format(rows []Row) string {
	if len(rows) == 0 {
		return "no generations\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-10s %-25s %s\n", "", "ID", "TIMESTAMP", "DESCRIPTION")
	for _, r := range rows {
		marker := ""
		if r.Current {
			marker = "*"
		}
		desc := r.Description
		if !r.Stored {
			desc += " (not yet saved)"
		}
		fmt.Fprintf(&b, "%-4s %-10d %-25s %s\n", marker, r.ID, r.Timestamp, desc)
	}
	return b.String()
}
