package realm

// Coord is a position bucket key within a room.
type Coord struct {
	X int
	Y int
}

// Player is the live state of one occupant. The JSON form is the public
// state sent to other occupants.
type Player struct {
	Identity string `json:"uid"`
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Room     int    `json:"room"`
	ConnId   string `json:"socketId"`
	Skin     string `json:"skin"`
}

// Coord returns the player's position bucket key.
func (p Player) Coord() Coord {
	return Coord{X: p.X, Y: p.Y}
}
