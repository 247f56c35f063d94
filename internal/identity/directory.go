package identity

import (
	"sync"
)

// User is a connected identity and the display name it connected with.
type User struct {
	Identity string
	Username string

	connId string
}

// Directory maps connected identities to display names. Entries live from
// connect until the connection that created them disconnects.
type Directory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]User),
	}
}

// Add records the identity's display name, owned by connId. A later connect
// for the same identity takes ownership.
func (d *Directory) Add(identity, username, connId string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[identity] = User{Identity: identity, Username: username, connId: connId}
}

// Get returns the user for an identity.
func (d *Directory) Get(identity string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[identity]
	return u, ok
}

// Release removes the identity if connId still owns the entry and reports
// whether it did.
func (d *Directory) Release(identity, connId string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[identity]
	if !ok || u.connId != connId {
		return false
	}
	delete(d.users, identity)
	return true
}

// Len returns the number of connected identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.users)
}
