package controller

import (
	"net/http"

	"github.com/sharetube/watchroom/pkg/rest"
)

func (c controller) getRooms(w http.ResponseWriter, r *http.Request) {
	summaries, err := c.roomService.ListRooms(r.Context())
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to list rooms", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "failed to list rooms"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"rooms": summaries})
}

func (c controller) getHealth(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, c.roomService.Health(r.Context()))
}
