package controller

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jamroom/server/internal/service/room"
	"github.com/jamroom/server/pkg/validator"
)

type iRoomRegistry interface {
	GetRoomInstance(roomId int64) (*room.Instance, error)
}

type iBroker interface {
	Subscribe(topic string) (string, <-chan room.Message)
	Unsubscribe(topic, id string)
}

type Controller struct {
	registry iRoomRegistry
	broker   iBroker
	upgrader websocket.Upgrader
	validate *validator.Validator
	log      *slog.Logger
}

func NewController(registry iRoomRegistry, broker iBroker, log *slog.Logger) *Controller {
	return &Controller{
		registry: registry,
		broker:   broker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		log:      log,
	}
}
