package realm

import (
	"sort"
)

type identitySet map[string]struct{}

// Session is the live occupancy of a single realm. It keeps the player map,
// the room membership index and the position index in agreement with each
// player's (room, x, y).
//
// Session is not safe for concurrent use. It is owned by a Registry and all
// access is serialized by the caller.
type Session struct {
	id     string
	layout Layout

	players   map[string]*Player
	rooms     map[int]identitySet
	positions map[int]map[Coord]identitySet
}

// NewSession creates an empty session for the given realm layout.
func NewSession(id string, layout Layout) *Session {
	s := &Session{
		id:        id,
		layout:    layout,
		players:   make(map[string]*Player),
		rooms:     make(map[int]identitySet, len(layout.Rooms)),
		positions: make(map[int]map[Coord]identitySet, len(layout.Rooms)),
	}
	for i := range layout.Rooms {
		s.rooms[i] = identitySet{}
		s.positions[i] = map[Coord]identitySet{}
	}
	return s
}

// Id returns the realm id this session belongs to.
func (s *Session) Id() string {
	return s.id
}

// HasRoom reports whether room is a valid index in the layout.
func (s *Session) HasRoom(room int) bool {
	_, ok := s.rooms[room]
	return ok
}

// AddPlayer places a player at the spawnpoint, replacing any existing entry
// for the same identity.
func (s *Session) AddPlayer(connId, identity, username, skin string) Player {
	s.RemovePlayer(identity)

	spawn := s.layout.Spawnpoint
	p := &Player{
		Identity: identity,
		Username: username,
		X:        spawn.X,
		Y:        spawn.Y,
		Room:     spawn.RoomIndex,
		ConnId:   connId,
		Skin:     skin,
	}

	s.players[identity] = p
	s.roomSet(p.Room)[identity] = struct{}{}
	s.bucket(p.Room, p.Coord())[identity] = struct{}{}

	return *p
}

// RemovePlayer deletes a player from the session and both indices. It is a
// no-op for unknown identities.
func (s *Session) RemovePlayer(identity string) {
	p, ok := s.players[identity]
	if !ok {
		return
	}

	delete(s.rooms[p.Room], identity)
	s.unbucket(p.Room, p.Coord(), identity)
	delete(s.players, identity)
}

// ChangeRoom moves a player to another room at the given coordinates.
// Callers announce the departure before and the arrival after this call.
func (s *Session) ChangeRoom(identity string, room, x, y int) error {
	p, ok := s.players[identity]
	if !ok {
		return ErrPlayerNotFound
	}
	if !s.HasRoom(room) {
		return ErrInvalidRoom
	}

	delete(s.rooms[p.Room], identity)
	s.rooms[room][identity] = struct{}{}
	s.unbucket(p.Room, p.Coord(), identity)
	p.Room = room

	return s.MovePlayer(identity, x, y)
}

// MovePlayer updates a player's coordinates within its current room.
func (s *Session) MovePlayer(identity string, x, y int) error {
	p, ok := s.players[identity]
	if !ok {
		return ErrPlayerNotFound
	}

	s.unbucket(p.Room, p.Coord(), identity)
	p.X = x
	p.Y = y
	s.bucket(p.Room, p.Coord())[identity] = struct{}{}

	return nil
}

// SetSkin changes a player's cosmetic skin.
func (s *Session) SetSkin(identity, skin string) error {
	p, ok := s.players[identity]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Skin = skin
	return nil
}

// Get returns a copy of the player's state.
func (s *Session) Get(identity string) (Player, error) {
	p, ok := s.players[identity]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return *p, nil
}

// PlayersInRoom returns the players in a room ordered by identity.
func (s *Session) PlayersInRoom(room int) []Player {
	ids := sortedIds(s.rooms[room])
	players := make([]Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			players = append(players, *p)
		}
	}
	return players
}

// PlayersAt returns the identities sharing a position bucket, ordered.
func (s *Session) PlayersAt(room int, c Coord) []string {
	return sortedIds(s.positions[room][c])
}

// PlayerCount returns the number of occupants.
func (s *Session) PlayerCount() int {
	return len(s.players)
}

// Identities returns a snapshot of all occupant identities. The result may be
// iterated while the session is mutated.
func (s *Session) Identities() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) roomSet(room int) identitySet {
	set, ok := s.rooms[room]
	if !ok {
		set = identitySet{}
		s.rooms[room] = set
	}
	return set
}

func (s *Session) bucket(room int, c Coord) identitySet {
	byCoord, ok := s.positions[room]
	if !ok {
		byCoord = map[Coord]identitySet{}
		s.positions[room] = byCoord
	}
	set, ok := byCoord[c]
	if !ok {
		set = identitySet{}
		byCoord[c] = set
	}
	return set
}

func (s *Session) unbucket(room int, c Coord, identity string) {
	set, ok := s.positions[room][c]
	if !ok {
		return
	}
	delete(set, identity)
	if len(set) == 0 {
		delete(s.positions[room], c)
	}
}

func sortedIds(set identitySet) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
