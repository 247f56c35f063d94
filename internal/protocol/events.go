package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"
)

// Inbound events.
const (
	EventJoinRealm   = "joinRealm"
	EventMovePlayer  = "movePlayer"
	EventTeleport    = "teleport"
	EventChangedSkin = "changedSkin"
	EventSendMessage = "sendMessage"
)

// Outbound events.
const (
	EventJoinedRealm       = "joinedRealm"
	EventFailedToJoinRoom  = "failedToJoinRoom"
	EventPlayerJoinedRoom  = "playerJoinedRoom"
	EventPlayerLeftRoom    = "playerLeftRoom"
	EventPlayerMoved       = "playerMoved"
	EventPlayerTeleported  = "playerTeleported"
	EventPlayerChangedSkin = "playerChangedSkin"
	EventReceiveMessage    = "receiveMessage"
	EventKicked            = "kicked"
)

// Message is the frame exchanged with clients in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an outbound frame. A nil payload produces a frame with no data.
func NewMessage(event string, payload any) (Message, error) {
	msg := Message{Event: event}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshalling %s payload: %w", event, err)
	}
	msg.Data = data
	return msg, nil
}

// Conn identifies a client connection and the identity it presented on connect.
type Conn struct {
	Id       string
	Identity string
	Username string
}

type JoinRealmData struct {
	RealmId string `json:"realmId"`
	ShareId string `json:"shareId"`
}

func (d *JoinRealmData) Validate() error {
	el := errors.NewErrorList()
	if _, err := uuid.Parse(d.RealmId); err != nil {
		el.Add(fmt.Errorf("realmId must be a uuid"))
	}
	return el.Err()
}

type MovePlayerData struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (d *MovePlayerData) Validate() error {
	if d.X == nil || d.Y == nil {
		return fmt.Errorf("x and y are required")
	}
	return nil
}

type TeleportData struct {
	X         *int `json:"x"`
	Y         *int `json:"y"`
	RoomIndex *int `json:"roomIndex"`
}

func (d *TeleportData) Validate() error {
	if d.X == nil || d.Y == nil || d.RoomIndex == nil {
		return fmt.Errorf("x, y and roomIndex are required")
	}
	return nil
}

type PositionUpdate struct {
	Identity string `json:"uid"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type SkinUpdate struct {
	Identity string `json:"uid"`
	Skin     string `json:"skin"`
}

type ChatMessage struct {
	Identity string `json:"uid"`
	Message  string `json:"message"`
}

type validator interface {
	Validate() error
}

func decode(raw json.RawMessage, v validator) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return v.Validate()
}
