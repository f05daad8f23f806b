package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jamroom/server/internal/service/room"
	"github.com/jamroom/server/pkg/rest"
)

func (c *Controller) getRoomInstance(w http.ResponseWriter, r *http.Request) (*room.Instance, bool) {
	roomId, err := strconv.ParseInt(chi.URLParam(r, "room-id"), 10, 64)
	if err != nil {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return nil, false
	}

	instance, err := c.registry.GetRoomInstance(roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return nil, false
		}

		c.log.ErrorContext(r.Context(), "failed to get room instance", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return nil, false
	}

	return instance, true
}

func (c *Controller) GetRoom(w http.ResponseWriter, r *http.Request) {
	instance, ok := c.getRoomInstance(w, r)
	if !ok {
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": instance.Snapshot()})
}

func (c *Controller) GetMessages(w http.ResponseWriter, r *http.Request) {
	instance, ok := c.getRoomInstance(w, r)
	if !ok {
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": instance.Messages()})
}

type sendMessageRequest struct {
	Username string `json:"username" validate:"required,max=16"`
	Message  string `json:"message" validate:"required"`
}

func (c *Controller) SendMessage(w http.ResponseWriter, r *http.Request) {
	instance, ok := c.getRoomInstance(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.log.InfoContext(r.Context(), "failed to read send message request", "err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.log.InfoContext(r.Context(), "invalid send message request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	msg := instance.SendMessage(&room.SendMessageParams{
		Username: req.Username,
		Text:     req.Message,
	})

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": msg})
}

type queueSongsRequest struct {
	SongIds []int64 `json:"song_ids" validate:"required,min=1,dive,gt=0"`
}

func (c *Controller) QueueSongs(w http.ResponseWriter, r *http.Request) {
	instance, ok := c.getRoomInstance(w, r)
	if !ok {
		return
	}

	var req queueSongsRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.log.InfoContext(r.Context(), "failed to read queue songs request", "err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.log.InfoContext(r.Context(), "invalid queue songs request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	instance.QueueSongs(&room.QueueSongsParams{SongIds: req.SongIds})

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": instance.Snapshot()})
}
