// Package roster tracks the set of peers currently connected to the relay.
// The relay rebroadcasts the full roster on every membership change and the
// local copy is replaced wholesale, never diffed.
package roster

import (
	"sync"

	"github.com/unishare/unishare/internal/signaling"
)

// Roster holds the latest roster snapshot and fans updates out to
// subscribers. The relay already excludes the local identity from what it
// sends each client, so no filtering happens here.
type Roster struct {
	mu    sync.RWMutex
	users []signaling.User
	subs  []func([]signaling.User)
}

func New() *Roster {
	return &Roster{}
}

// Subscribe registers a callback invoked with every roster snapshot.
func (r *Roster) Subscribe(fn func([]signaling.User)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Replace swaps the snapshot and notifies all subscribers.
func (r *Roster) Replace(users []signaling.User) {
	r.mu.Lock()
	r.users = users
	subs := make([]func([]signaling.User), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(users)
	}
}

// Users returns the current snapshot.
func (r *Roster) Users() []signaling.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]signaling.User, len(r.users))
	copy(out, r.users)
	return out
}

// Lookup returns the roster entry for the given peer id.
func (r *Roster) Lookup(id string) (signaling.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, true
		}
	}
	return signaling.User{}, false
}
