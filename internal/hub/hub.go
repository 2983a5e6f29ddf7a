// Package hub owns the set of live game rooms, keyed by game token. Like
// the rooms themselves it is an actor: all map access happens on the loop
// goroutine.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/game"
	"github.com/birdr-pro/quizwire/internal/protocol"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Game  protocol.Game
	Reply chan *game.Room
}

type GetRoom struct {
	Token string
	Reply chan *game.Room
}

type RemoveRoom struct {
	Token string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*game.Room
	source game.Source
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, source game.Source, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*game.Room),
		source: source,
		log:    log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := h.rooms[msg.Game.Token]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := game.NewRoom(h.ctx, msg.Game, h.source, h.log)
				h.rooms[msg.Game.Token] = rm
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Token] // May be nil

			case RemoveRoom:
				delete(h.rooms, msg.Token)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for token, rm := range h.rooms {
		rm.Inbox() <- game.Shutdown{}
		delete(h.rooms, token)
	}
	h.cancel()
}
