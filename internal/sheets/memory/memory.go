package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/sheets"
)

var _ sheets.Sink = (*Store)(nil)

// Store keeps tabs in process. It stands in for Google Sheets when no
// spreadsheet is configured.
type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	writes int
}

func New() *Store {
	return &Store{tabs: map[string][][]string{}}
}

// ReplaceRows stores a copy of rows under tab.
func (s *Store) ReplaceRows(_ context.Context, tab string, rows [][]string) error {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = slices.Clone(r)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = cp
	s.writes++
	return nil
}

// ReadRows returns the rows of tab, or none when it was never written.
func (s *Store) ReadRows(_ context.Context, tab string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tabs[tab]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

// Tabs lists the written tab names in sorted order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tabs))
	for name := range s.tabs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Writes counts ReplaceRows calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
