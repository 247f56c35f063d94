package realm

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-errors"
)

// Spawnpoint is where newly admitted players are placed.
type Spawnpoint struct {
	RoomIndex int `json:"roomIndex"`
	X         int `json:"x"`
	Y         int `json:"y"`
}

// Layout is the immutable map a session is built from. Room contents are
// opaque to the presence engine; only their count and order matter here.
type Layout struct {
	Spawnpoint Spawnpoint        `json:"spawnpoint"`
	Rooms      []json.RawMessage `json:"rooms"`
}

// Validate satisfies storage.ValidatingSpec.
func (l *Layout) Validate() error {
	el := errors.NewErrorList()

	if len(l.Rooms) == 0 {
		el.Add(fmt.Errorf("at least one room is required"))
	}
	if l.Spawnpoint.RoomIndex < 0 || l.Spawnpoint.RoomIndex >= len(l.Rooms) {
		el.Add(fmt.Errorf("spawnpoint room %d out of range (%d rooms)", l.Spawnpoint.RoomIndex, len(l.Rooms)))
	}

	return el.Err()
}
