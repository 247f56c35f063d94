package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-gather/internal/realm"
	"github.com/pixil98/go-gather/internal/storage"
)

func (h *Handler) joinRealm(ctx context.Context, c Conn, raw json.RawMessage) {
	err := h.join(ctx, c, raw)
	if err == nil {
		h.recorder.JoinAccepted()
		return
	}

	var rej *RejectError
	if !errors.As(err, &rej) {
		slog.ErrorContext(ctx, "joining realm", "identity", c.Identity, "connId", c.Id, "error", err)
		rej = RejectServerError
	}

	slog.InfoContext(ctx, "join rejected", "identity", c.Identity, "connId", c.Id, "reason", rej.Reason)
	h.recorder.JoinRejected(rej.Code)
	h.warn(ctx, "sending join rejection", h.out.Send(c.Id, EventFailedToJoinRoom, rej.Reason))
}

// join runs the admission flow. Any returned error leaves the registry as it
// was.
func (h *Handler) join(ctx context.Context, c Conn, raw json.RawMessage) error {
	var req JoinRealmData
	if err := decode(raw, &req); err != nil {
		return RejectInvalid
	}

	if !h.beginJoin(c.Identity) {
		return RejectAlreadyJoining
	}
	defer h.endJoin(c.Identity)

	if h.full(req.RealmId) {
		return rejectFull(h.registry.MaxPlayers())
	}

	rec, err := h.repo.GetRealm(ctx, req.RealmId)
	if errors.Is(err, storage.ErrNotFound) {
		return RejectNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up realm %q: %w", req.RealmId, err)
	}

	skin, err := h.profileSkin(ctx, c.Identity)
	if err != nil {
		return err
	}

	if err := authorize(rec, c.Identity, req.ShareId); err != nil {
		return err
	}

	return h.admit(ctx, c, req.RealmId, rec.MapData, skin)
}

func authorize(rec *storage.Realm, id, shareId string) error {
	if rec.OwnerId == id {
		return nil
	}
	if rec.OnlyOwner {
		return RejectPrivate
	}
	if rec.ShareId != shareId {
		return RejectShareChanged
	}
	return nil
}

func (h *Handler) profileSkin(ctx context.Context, id string) (string, error) {
	p, err := h.repo.GetProfile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return h.defaultSkin, nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up profile %q: %w", id, err)
	}
	if p.Skin == "" {
		return h.defaultSkin, nil
	}
	return p.Skin, nil
}

// admit applies the side effects of a successful join. Lookups ran without
// the lock, so capacity and the identity are checked again before anything
// is mutated.
func (h *Handler) admit(ctx context.Context, c Conn, realmId string, layout realm.Layout, skin string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.registry.Full(realmId) {
		return rejectFull(h.registry.MaxPlayers())
	}

	// The connection may have closed while the lookups ran.
	if _, ok := h.live[c.Id]; !ok {
		return RejectUserNotFound
	}
	user, ok := h.users.Get(c.Identity)
	if !ok {
		return RejectUserNotFound
	}

	s, ok := h.registry.Session(realmId)
	if !ok {
		if err := layout.Validate(); err != nil {
			return fmt.Errorf("realm %q layout: %w", realmId, err)
		}
		s = h.registry.CreateSession(realmId, layout)
	}

	if prior, ok := h.registry.SessionFor(c.Identity); ok {
		priorId := prior.Id()
		h.warn(ctx, "evicting prior session", h.registry.Evict(c.Identity, ReasonLoggedInElsewhere))
		h.recorder.Evicted(1)
		slog.InfoContext(ctx, "displaced prior session", "identity", c.Identity, "realmId", priorId)
	}

	p, err := h.registry.AddPlayer(c.Id, realmId, c.Identity, user.Username, skin)
	if err != nil {
		return fmt.Errorf("registering player: %w", err)
	}

	h.warn(ctx, "joining realm group", h.out.JoinGroup(c.Id, realmId))
	h.warn(ctx, "confirming join", h.out.Send(c.Id, EventJoinedRealm, nil))
	for _, peer := range s.PlayersInRoom(p.Room) {
		if peer.Identity == p.Identity {
			continue
		}
		h.warn(ctx, "sending roster", h.out.Send(c.Id, EventPlayerJoinedRoom, peer))
	}
	h.warn(ctx, "announcing arrival", h.out.ToRoom(s, p.Room, c.Id, EventPlayerJoinedRoom, p))

	slog.InfoContext(ctx, "player joined realm", "identity", c.Identity, "realmId", realmId, "connId", c.Id)
	return nil
}

func (h *Handler) beginJoin(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joining[id]; ok {
		return false
	}
	h.joining[id] = struct{}{}
	return true
}

func (h *Handler) endJoin(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.joining, id)
}

func (h *Handler) full(realmId string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registry.Full(realmId)
}

// Joining reports whether a join is in flight for the identity.
func (h *Handler) Joining(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.joining[id]
	return ok
}
