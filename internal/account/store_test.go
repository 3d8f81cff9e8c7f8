package account

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "accounts.toml"))
}

func TestStore_EmptyFile(t *testing.T) {
	t.Parallel()

	s := testStore(t)

	_, err := s.Current()
	require.ErrorIs(t, err, ErrNoCurrentAccount)

	accounts, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestStore_SetCurrentRoundTrip(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	a := Account{Server: "https://drive.example.com", Username: "alice", Token: "tok-1"}

	require.NoError(t, s.SetCurrent(a))

	got, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestStore_SetCurrentReplacesByIdentity(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	a := Account{Server: "https://drive.example.com", Username: "alice", Token: "old"}
	require.NoError(t, s.SetCurrent(a))

	// Same identity, rotated token. Must replace, not duplicate.
	a.Token = "new"
	require.NoError(t, s.SetCurrent(a))

	accounts, err := s.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "new", accounts[0].Token)
}

func TestStore_RemoveClearsCurrent(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	a := Account{Server: "https://drive.example.com", Username: "alice", Token: "t"}
	b := Account{Server: "https://drive.example.com", Username: "bob", Token: "t"}
	require.NoError(t, s.SetCurrent(a))
	require.NoError(t, s.SetCurrent(b))

	require.NoError(t, s.Remove(b))

	_, err := s.Current()
	require.ErrorIs(t, err, ErrNoCurrentAccount)

	accounts, err := s.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
}

func TestAccount_Equal(t *testing.T) {
	t.Parallel()

	a := Account{Server: "s", Username: "u", Token: "x"}
	b := Account{Server: "s", Username: "u", Token: "y"}
	c := Account{Server: "s2", Username: "u"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
