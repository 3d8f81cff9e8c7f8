// Package account holds account identity and the on-disk account store.
// It is a leaf package imported by cache/, transfer/, and autoupdate/ so
// that none of them need to know how accounts are persisted.
package account

import "fmt"

// Account identifies one logged-in session against a repository server.
// Two accounts are the same session when server and username match; the
// token may rotate without changing identity.
type Account struct {
	Server   string `toml:"server"`
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// Equal reports whether two accounts refer to the same session.
func (a Account) Equal(b Account) bool {
	return a.Server == b.Server && a.Username == b.Username
}

// Key returns the stable identity string used to reference an account in
// the store's "current" field and in cache index rows.
func (a Account) Key() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Server)
}

// Zero reports whether the account is the zero value (no session).
func (a Account) Zero() bool {
	return a.Server == "" && a.Username == ""
}
