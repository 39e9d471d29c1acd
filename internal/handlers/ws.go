package handlers

import (
	"net/http"

	"leadmarket/internal/middleware"
	"leadmarket/internal/websocket"
)

func (h *Handler) WSNotifications(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	websocket.ServeWS(w, r, h.hub, actor.ID)
}
