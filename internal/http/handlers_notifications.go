package http

import (
	"net/http"

	"crm/internal/log"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	params, err := ParseNotificationParams(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	items, err := s.store.ListNotifications(r.Context(), params.UnreadOnly, params.Limit)
	respond(w, r, log.OpList, nonNil(items), err)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	if err := s.store.MarkNotificationRead(r.Context(), id); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
