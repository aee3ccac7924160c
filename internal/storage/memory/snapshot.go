package memory

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MuhamadAdhiWinata/catatan-keuangan/internal/core"
)

// snapshotFile is the on-disk layout. Users carry their password hash, which
// core.User hides from JSON.
type snapshotFile struct {
	NextID       int64              `json:"nextId"`
	Users        []snapshotUser     `json:"users"`
	Accounts     []core.Account     `json:"accounts"`
	Categories   []core.Category    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
}

type snapshotUser struct {
	core.User
	PasswordHash string `json:"passwordHash"`
}

func all[V any](_ V) bool { return true }

func loadSnapshot(path string) (*state, error) {
	st := newState()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	st.nextID = file.NextID
	for _, su := range file.Users {
		u := su.User
		u.PasswordHash = su.PasswordHash
		st.users[u.ID] = u
		st.usernames[u.Username] = u.ID
	}
	for _, a := range file.Accounts {
		st.accounts[a.ID] = a
	}
	for _, c := range file.Categories {
		st.categories[c.ID] = c
	}
	for _, t := range file.Transactions {
		st.transactions[t.ID] = t
	}
	return st, nil
}

// saveSnapshot writes to a temporary file and renames it over path so a
// crash mid-write never leaves a truncated snapshot.
func saveSnapshot(path string, st *state) error {
	file := snapshotFile{
		NextID:       st.nextID,
		Accounts:     sortedValues(st.accounts, all[core.Account]),
		Categories:   sortedValues(st.categories, all[core.Category]),
		Transactions: sortedValues(st.transactions, all[core.Transaction]),
	}
	for _, u := range sortedValues(st.users, all[core.User]) {
		file.Users = append(file.Users, snapshotUser{User: u, PasswordHash: u.PasswordHash})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
