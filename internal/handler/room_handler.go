/*
Package handler provides the HTTP handlers and routing for the server.

This file holds the read-only room endpoints the UI uses to render its
room list and presence views.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parley/internal/pkg/errs"
	"parley/internal/pkg/randx"
	"parley/internal/pkg/resp"
)

// HandleListRooms returns every instantiated room with member counts.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"rooms": deps.Router.RoomSummaries(),
		})
	}
}

// HandleRoomPresence returns the derived presence snapshot for a room.
func HandleRoomPresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := randx.NormalizeRoomName(chi.URLParam(r, "name"))
		if !randx.IsValidRoomName(name) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRoom))
			return
		}

		if _, ok := deps.Router.Room(name); !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomName": name,
			"presence": deps.Router.Presence().Snapshot(name),
		})
	}
}
