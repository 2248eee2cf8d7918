// Package boards exposes the small read-side HTTP API next to the
// realtime channel: active room listing and board key minting.
package boards

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"cardwall/board"
	"cardwall/core"
)

type roomInfo struct {
	Key   string `json:"key"`
	Users int    `json:"users"`
}

// HandleListRooms reports every room with at least one connected
// member.
func HandleListRooms(registry *board.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := registry.ActiveRooms()
		rooms := make([]roomInfo, 0, len(active))
		for key, users := range active {
			rooms = append(rooms, roomInfo{Key: key, Users: users})
		}
		render.JSON(w, r, rooms)
	}
}

// HandleCreateBoard mints a fresh, collision-free board key. The
// board itself is created lazily when the first client joins it.
func HandleCreateBoard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "/" + strings.ToLower(ulid.Make().String())
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"key": key})
	}
}

// HandleGetBoard serves a room's board as the same JSON document the
// realtime export produces. Password-protected rooms are not readable
// here.
func HandleGetBoard(store core.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Board key is required"})
			return
		}
		room := "/" + key

		password, err := store.GetPassword(r.Context(), room)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"room":  room,
			}).Error("Failed to read room password")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read board"})
			return
		}
		if password != "" {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Board is password protected"})
			return
		}

		snap, err := readSnapshot(r, store, room)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"room":  room,
			}).Error("Failed to read board")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read board"})
			return
		}
		render.JSON(w, r, snap)
	}
}

func readSnapshot(r *http.Request, store core.Store, room string) (core.Snapshot, error) {
	var snap core.Snapshot
	var err error

	if snap.Cards, err = store.GetAllCards(r.Context(), room); err != nil {
		return snap, err
	}
	if snap.Columns, err = store.GetAllColumns(r.Context(), room); err != nil {
		return snap, err
	}
	if snap.Theme, err = store.GetTheme(r.Context(), room); err != nil {
		return snap, err
	}
	size, err := store.GetBoardSize(r.Context(), room)
	if err != nil {
		return snap, err
	}

	if snap.Cards == nil {
		snap.Cards = []core.Card{}
	}
	if snap.Columns == nil {
		snap.Columns = []string{}
	}
	if snap.Theme == "" {
		snap.Theme = core.ThemeBigCards
	}
	if size != nil {
		snap.Size = *size
	}
	return snap, nil
}
