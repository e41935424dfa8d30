package session

import (
	"sort"
	"sync"
	"time"

	"github.com/apexline/simcore/pkg/core"
)

// Member is a party peer as last reported by the server.
type Member struct {
	UserID   int
	Name     string
	State    core.PlayerState
	LastSeen time.Time
}

// Roster tracks party membership and peer poses. All writes come from
// the session read loop (single writer); the lock exists so render-side
// readers can snapshot concurrently. Entries survive reconnects.
type Roster struct {
	mu      sync.RWMutex
	members map[int]Member
}

func NewRoster() *Roster {
	return &Roster{members: make(map[int]Member)}
}

func (r *Roster) Join(userID int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.members[userID]
	m.UserID = userID
	m.Name = name
	m.LastSeen = time.Now()
	r.members[userID] = m
}

func (r *Roster) Leave(userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, userID)
}

// Move applies a peer state update. Last writer wins; a member unknown
// to the roster is created so updates arriving before the join notice
// are not lost.
func (r *Roster) Move(state core.PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.members[state.UserID]
	m.UserID = state.UserID
	m.State = state
	m.LastSeen = time.Now()
	r.members[state.UserID] = m
}

func (r *Roster) Get(userID int) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[userID]
	return m, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot returns the members ordered by user id.
func (r *Roster) Snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = make(map[int]Member)
}
