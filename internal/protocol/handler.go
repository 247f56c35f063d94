package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/pixil98/go-gather/internal/identity"
	"github.com/pixil98/go-gather/internal/realm"
	"github.com/pixil98/go-gather/internal/storage"
)

const DefaultSkin = "009"

var ErrNotInRealm = errors.New("user not in a realm")

// Recorder observes presence outcomes.
type Recorder interface {
	JoinAccepted()
	JoinRejected(code string)
	Evicted(count int)
}

type nopRecorder struct{}

func (nopRecorder) JoinAccepted()       {}
func (nopRecorder) JoinRejected(string) {}
func (nopRecorder) Evicted(int)         {}

// Handler applies client events to the registry and emits the resulting
// broadcasts. Every state transition and the broadcasts that describe it
// happen under one lock, so observers never see an intermediate state. Only
// the join flow does I/O, and it does so outside the lock behind a
// per-identity pending guard.
type Handler struct {
	mu       sync.Mutex
	registry *realm.Registry
	users    *identity.Directory
	repo     storage.Repository
	out      *Broadcaster
	recorder Recorder

	defaultSkin      string
	maxMessageLength int

	joining map[string]struct{}
	live    map[string]struct{}
}

type HandlerOpt func(*Handler)

func WithDefaultSkin(skin string) HandlerOpt {
	return func(h *Handler) {
		h.defaultSkin = skin
	}
}

func WithMaxMessageLength(n int) HandlerOpt {
	return func(h *Handler) {
		h.maxMessageLength = n
	}
}

func WithRecorder(r Recorder) HandlerOpt {
	return func(h *Handler) {
		h.recorder = r
	}
}

func NewHandler(reg *realm.Registry, users *identity.Directory, repo storage.Repository, out *Broadcaster, opts ...HandlerOpt) *Handler {
	h := &Handler{
		registry:         reg,
		users:            users,
		repo:             repo,
		out:              out,
		recorder:         nopRecorder{},
		defaultSkin:      DefaultSkin,
		maxMessageLength: DefaultMaxMessageLength,
		joining:          make(map[string]struct{}),
		live:             make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect registers the identity presented by a new connection.
func (h *Handler) Connect(ctx context.Context, c Conn) error {
	if c.Identity == "" || c.Username == "" {
		return ErrMissingIdentity
	}

	if err := h.repo.UpsertProfile(ctx, c.Identity, c.Username); err != nil {
		slog.WarnContext(ctx, "upserting profile", "identity", c.Identity, "error", err)
	}

	h.mu.Lock()
	h.live[c.Id] = struct{}{}
	h.users.Add(c.Identity, c.Username, c.Id)
	h.mu.Unlock()

	slog.DebugContext(ctx, "connection registered", "identity", c.Identity, "connId", c.Id)
	return nil
}

// Dispatch routes one inbound frame. Malformed payloads are dropped.
func (h *Handler) Dispatch(ctx context.Context, c Conn, msg Message) {
	switch msg.Event {
	case EventJoinRealm:
		h.joinRealm(ctx, c, msg.Data)
	case EventMovePlayer:
		h.movePlayer(ctx, c, msg.Data)
	case EventTeleport:
		h.teleport(ctx, c, msg.Data)
	case EventChangedSkin:
		h.changeSkin(ctx, c, msg.Data)
	case EventSendMessage:
		h.sendMessage(ctx, c, msg.Data)
	default:
		slog.DebugContext(ctx, "ignoring unknown event", "event", msg.Event, "connId", c.Id)
	}
}

// occupant resolves a connection to its live session and player. The caller
// must hold h.mu.
func (h *Handler) occupant(c Conn) (*realm.Session, realm.Player, bool) {
	id, ok := h.registry.IdentityFor(c.Id)
	if !ok {
		return nil, realm.Player{}, false
	}
	s, ok := h.registry.SessionFor(id)
	if !ok {
		return nil, realm.Player{}, false
	}
	p, err := s.Get(id)
	if err != nil {
		return nil, realm.Player{}, false
	}
	return s, p, true
}

func (h *Handler) movePlayer(ctx context.Context, c Conn, raw json.RawMessage) {
	var d MovePlayerData
	if err := decode(raw, &d); err != nil {
		slog.DebugContext(ctx, "dropping movePlayer", "connId", c.Id, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, p, ok := h.occupant(c)
	if !ok {
		return
	}
	if err := s.MovePlayer(p.Identity, *d.X, *d.Y); err != nil {
		return
	}

	h.warn(ctx, "broadcasting move", h.out.ToRoom(s, p.Room, c.Id, EventPlayerMoved,
		PositionUpdate{Identity: p.Identity, X: *d.X, Y: *d.Y}))
}

func (h *Handler) teleport(ctx context.Context, c Conn, raw json.RawMessage) {
	var d TeleportData
	if err := decode(raw, &d); err != nil {
		slog.DebugContext(ctx, "dropping teleport", "connId", c.Id, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, p, ok := h.occupant(c)
	if !ok {
		return
	}

	if *d.RoomIndex == p.Room {
		if err := s.MovePlayer(p.Identity, *d.X, *d.Y); err != nil {
			return
		}
		h.warn(ctx, "broadcasting teleport", h.out.ToRoom(s, p.Room, c.Id, EventPlayerTeleported,
			PositionUpdate{Identity: p.Identity, X: *d.X, Y: *d.Y}))
		return
	}

	if !s.HasRoom(*d.RoomIndex) {
		slog.DebugContext(ctx, "dropping teleport to unknown room", "connId", c.Id, "room", *d.RoomIndex)
		return
	}

	// The old room hears the departure before the move, the new room hears
	// the arrival after it.
	h.warn(ctx, "broadcasting room exit", h.out.ToRoom(s, p.Room, c.Id, EventPlayerLeftRoom, p.Identity))
	if err := s.ChangeRoom(p.Identity, *d.RoomIndex, *d.X, *d.Y); err != nil {
		slog.WarnContext(ctx, "changing room", "identity", p.Identity, "error", err)
		return
	}
	moved, err := s.Get(p.Identity)
	if err != nil {
		return
	}
	h.warn(ctx, "broadcasting room entry", h.out.ToRoom(s, moved.Room, c.Id, EventPlayerJoinedRoom, moved))
}

func (h *Handler) changeSkin(ctx context.Context, c Conn, raw json.RawMessage) {
	var skin string
	if err := json.Unmarshal(raw, &skin); err != nil || skin == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, p, ok := h.occupant(c)
	if !ok {
		return
	}
	if err := s.SetSkin(p.Identity, skin); err != nil {
		return
	}

	h.warn(ctx, "broadcasting skin", h.out.ToRoom(s, p.Room, c.Id, EventPlayerChangedSkin,
		SkinUpdate{Identity: p.Identity, Skin: skin}))
}

func (h *Handler) sendMessage(ctx context.Context, c Conn, raw json.RawMessage) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return
	}
	msg, ok := SanitizeMessage(text, h.maxMessageLength)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, p, ok := h.occupant(c)
	if !ok {
		return
	}

	h.warn(ctx, "broadcasting chat", h.out.ToRoom(s, p.Room, c.Id, EventReceiveMessage,
		ChatMessage{Identity: p.Identity, Message: msg}))
}

// Disconnect removes whatever the connection registered and tells its room.
func (h *Handler) Disconnect(ctx context.Context, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.live, c.Id)
	h.users.Release(c.Identity, c.Id)

	id, ok := h.registry.IdentityFor(c.Id)
	if !ok {
		return
	}
	s, ok := h.registry.SessionFor(id)
	if !ok {
		h.registry.LogoutByConnection(c.Id)
		return
	}
	p, err := s.Get(id)
	if err != nil {
		h.registry.LogoutByConnection(c.Id)
		return
	}

	peers := h.registry.ConnectionsInRoom(s.Id(), p.Room)
	h.registry.LogoutByConnection(c.Id)

	h.warn(ctx, "broadcasting departure", h.out.Multicast(peers, c.Id, EventPlayerLeftRoom, id))
	h.warn(ctx, "leaving realm group", h.out.LeaveGroup(c.Id, s.Id()))

	slog.InfoContext(ctx, "player disconnected", "identity", id, "realmId", s.Id(), "connId", c.Id)
}

// TerminateRealm evicts every occupant of a realm and discards its session.
func (h *Handler) TerminateRealm(ctx context.Context, realmId, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Session(realmId)
	if !ok {
		return nil
	}
	n := s.PlayerCount()

	err := h.registry.Terminate(realmId, reason)
	h.recorder.Evicted(n)

	slog.InfoContext(ctx, "terminated realm session", "realmId", realmId, "evicted", n, "reason", reason)
	return err
}

// PlayersInRoom lists the players in a room of the realm the identity occupies.
func (h *Handler) PlayersInRoom(id string, room int) ([]realm.Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.SessionFor(id)
	if !ok {
		return nil, ErrNotInRealm
	}
	return s.PlayersInRoom(room), nil
}

// PlayerCounts returns the occupant count of each realm, zero when idle.
func (h *Handler) PlayerCounts(realmIds []string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registry.PlayerCounts(realmIds)
}

// Counts returns the number of live sessions and players.
func (h *Handler) Counts() (sessions, players int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registry.Counts()
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	if err != nil {
		slog.WarnContext(ctx, msg, "error", err)
	}
}
