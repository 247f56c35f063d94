package realm

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

const DefaultMaxPlayers = 30

// Evictor delivers the notices for a forced removal. The registry removes the
// player from its indices after Evict returns, whether or not it failed.
type Evictor interface {
	Evict(s *Session, p Player, reason string) error
}

// Registry owns every live Session and the global identity and connection
// indices. An identity occupies at most one realm and a connection maps to at
// most one identity.
//
// Registry is not safe for concurrent use; the protocol handler serializes
// all access to it.
type Registry struct {
	evictor    Evictor
	maxPlayers int

	sessions        map[string]*Session
	realmByIdentity map[string]string
	identityByConn  map[string]string
}

type RegistryOpt func(*Registry)

// WithMaxPlayers sets the admission ceiling per realm.
func WithMaxPlayers(n int) RegistryOpt {
	return func(r *Registry) {
		r.maxPlayers = n
	}
}

func NewRegistry(evictor Evictor, opts ...RegistryOpt) *Registry {
	r := &Registry{
		evictor:         evictor,
		maxPlayers:      DefaultMaxPlayers,
		sessions:        make(map[string]*Session),
		realmByIdentity: make(map[string]string),
		identityByConn:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxPlayers returns the admission ceiling per realm.
func (r *Registry) MaxPlayers() int {
	return r.maxPlayers
}

// CreateSession creates a session for the realm, replacing any existing one.
func (r *Registry) CreateSession(realmId string, layout Layout) *Session {
	s := NewSession(realmId, layout)
	r.sessions[realmId] = s
	return s
}

// Session returns the live session for a realm.
func (r *Registry) Session(realmId string) (*Session, bool) {
	s, ok := r.sessions[realmId]
	return s, ok
}

// SessionFor returns the session the identity currently occupies.
func (r *Registry) SessionFor(identity string) (*Session, bool) {
	realmId, ok := r.realmByIdentity[identity]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[realmId]
	return s, ok
}

// IdentityFor resolves a connection to the identity it joined as.
func (r *Registry) IdentityFor(connId string) (string, bool) {
	id, ok := r.identityByConn[connId]
	return id, ok
}

// Full reports whether the realm has a live session at the admission ceiling.
func (r *Registry) Full(realmId string) bool {
	s, ok := r.sessions[realmId]
	return ok && s.PlayerCount() >= r.maxPlayers
}

// AddPlayer registers a player at the realm's spawnpoint. The identity must not
// occupy any session; callers evict a prior occupancy first.
func (r *Registry) AddPlayer(connId, realmId, identity, username, skin string) (Player, error) {
	s, ok := r.sessions[realmId]
	if !ok {
		return Player{}, fmt.Errorf("realm %q: %w", realmId, ErrSessionNotFound)
	}

	p := s.AddPlayer(connId, identity, username, skin)
	r.realmByIdentity[identity] = realmId
	r.identityByConn[connId] = identity

	return p, nil
}

// Logout removes the identity from its session and every index. Unknown
// identities are ignored.
func (r *Registry) Logout(identity string) {
	realmId, ok := r.realmByIdentity[identity]
	if !ok {
		return
	}
	delete(r.realmByIdentity, identity)

	s, ok := r.sessions[realmId]
	if !ok {
		return
	}
	if p, err := s.Get(identity); err == nil {
		delete(r.identityByConn, p.ConnId)
	}
	s.RemovePlayer(identity)
}

// LogoutByConnection logs out whichever identity joined through connId and
// reports whether one did.
func (r *Registry) LogoutByConnection(connId string) bool {
	identity, ok := r.identityByConn[connId]
	if !ok {
		return false
	}
	r.Logout(identity)
	return true
}

// ConnectionsInRoom returns the connection handles of a room's occupants.
func (r *Registry) ConnectionsInRoom(realmId string, room int) []string {
	s, ok := r.sessions[realmId]
	if !ok {
		return nil
	}
	players := s.PlayersInRoom(room)
	conns := make([]string, 0, len(players))
	for _, p := range players {
		conns = append(conns, p.ConnId)
	}
	return conns
}

// Evict forcibly removes an identity from whatever session it occupies. The
// player is logged out even if delivering the notices fails.
func (r *Registry) Evict(identity, reason string) error {
	s, ok := r.SessionFor(identity)
	if !ok {
		return nil
	}
	p, err := s.Get(identity)
	if err != nil {
		r.Logout(identity)
		return nil
	}

	var evictErr error
	if r.evictor != nil {
		evictErr = r.evictor.Evict(s, p, reason)
	}
	r.Logout(identity)

	if evictErr != nil {
		return fmt.Errorf("evicting %q from %q: %w", identity, s.Id(), evictErr)
	}
	return nil
}

// Terminate evicts every occupant of the realm and discards its session. The
// session is removed even when individual evictions fail; those failures are
// returned together.
func (r *Registry) Terminate(realmId, reason string) error {
	s, ok := r.sessions[realmId]
	if !ok {
		return nil
	}

	el := errors.NewErrorList()
	for _, identity := range s.Identities() {
		el.Add(r.Evict(identity, reason))
	}
	delete(r.sessions, realmId)

	return el.Err()
}

// PlayerCounts returns the occupant count for each realm id, zero for realms
// without a live session.
func (r *Registry) PlayerCounts(realmIds []string) []int {
	counts := make([]int, len(realmIds))
	for i, id := range realmIds {
		if s, ok := r.sessions[id]; ok {
			counts[i] = s.PlayerCount()
		}
	}
	return counts
}

// Counts returns the number of live sessions and registered players.
func (r *Registry) Counts() (sessions, players int) {
	return len(r.sessions), len(r.realmByIdentity)
}
