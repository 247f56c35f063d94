package listener

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pixil98/go-gather/internal/protocol"
	"github.com/pixil98/go-gather/internal/realm"
)

const MaxCountedRealms = 100

type messageResponse struct {
	Message string `json:"message"`
}

type playersResponse struct {
	Players []realm.Player `json:"players"`
}

type countsResponse struct {
	PlayerCounts []int `json:"playerCounts"`
}

func (l *WebsocketListener) playersInRoom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid := q.Get("uid")
	if uid == "" {
		writeMessage(w, http.StatusBadRequest, "uid is required")
		return
	}
	room, err := strconv.Atoi(q.Get("roomIndex"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid parameters")
		return
	}

	players, err := l.presence.PlayersInRoom(uid, room)
	if errors.Is(err, protocol.ErrNotInRealm) {
		writeMessage(w, http.StatusBadRequest, "User not in a realm.")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "listing players", "uid", uid, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error.")
		return
	}

	writeJSON(w, http.StatusOK, playersResponse{Players: players})
}

func (l *WebsocketListener) playerCounts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("realmIds")
	if raw == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid parameters")
		return
	}
	ids := strings.Split(raw, ",")
	if len(ids) > MaxCountedRealms {
		writeMessage(w, http.StatusBadRequest, "Too many server IDs")
		return
	}

	writeJSON(w, http.StatusOK, countsResponse{PlayerCounts: l.presence.PlayerCounts(ids)})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}
