package account

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FilePerms restricts the account file to owner-only read/write because it
// contains API tokens.
const FilePerms = 0o600

// DirPerms is used when creating the parent directory of the account file.
const DirPerms = 0o700

// ErrNoCurrentAccount is returned by Current when no account is selected
// or the selected key has no matching entry.
var ErrNoCurrentAccount = errors.New("account: no current account")

// storeFile is the on-disk TOML shape of the account store.
type storeFile struct {
	Current  string    `toml:"current"`
	Accounts []Account `toml:"account"`
}

// Store persists known accounts and the current selection in a single TOML
// file. All methods re-read the file so that an external `drivecache login`
// is picked up without restarting the agent.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Current returns the currently selected account.
func (s *Store) Current() (Account, error) {
	sf, err := s.read()
	if err != nil {
		return Account{}, err
	}

	if sf.Current == "" {
		return Account{}, ErrNoCurrentAccount
	}

	for _, a := range sf.Accounts {
		if a.Key() == sf.Current {
			return a, nil
		}
	}

	return Account{}, ErrNoCurrentAccount
}

// List returns all known accounts.
func (s *Store) List() ([]Account, error) {
	sf, err := s.read()
	if err != nil {
		return nil, err
	}

	return sf.Accounts, nil
}

// SetCurrent saves the account (inserting or replacing by identity) and
// marks it as the current selection.
func (s *Store) SetCurrent(a Account) error {
	sf, err := s.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range sf.Accounts {
		if sf.Accounts[i].Equal(a) {
			sf.Accounts[i] = a
			replaced = true
			break
		}
	}

	if !replaced {
		sf.Accounts = append(sf.Accounts, a)
	}

	sf.Current = a.Key()

	return s.write(sf)
}

// Remove deletes the account from the store. If it was the current
// selection, the selection is cleared.
func (s *Store) Remove(a Account) error {
	sf, err := s.read()
	if err != nil {
		return err
	}

	kept := sf.Accounts[:0]
	for _, existing := range sf.Accounts {
		if !existing.Equal(a) {
			kept = append(kept, existing)
		}
	}

	sf.Accounts = kept
	if sf.Current == a.Key() {
		sf.Current = ""
	}

	return s.write(sf)
}

// read loads the store file, returning an empty store if it does not exist.
func (s *Store) read() (*storeFile, error) {
	var sf storeFile

	if _, err := toml.DecodeFile(s.path, &sf); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &storeFile{}, nil
		}

		return nil, fmt.Errorf("account: reading %s: %w", s.path, err)
	}

	return &sf, nil
}

// write persists the store file with owner-only permissions.
func (s *Store) write(sf *storeFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), DirPerms); err != nil {
		return fmt.Errorf("account: creating account dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FilePerms)
	if err != nil {
		return fmt.Errorf("account: opening %s for write: %w", s.path, err)
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(sf); err != nil {
		f.Close()
		return fmt.Errorf("account: encoding %s: %w", s.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("account: closing %s: %w", s.path, err)
	}

	return nil
}
