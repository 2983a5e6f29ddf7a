package session

import (
	"context"

	"go.uber.org/zap"
)

type Msg interface{ isSessionMsg() }

// Dispatch feeds one event through the reducer.
type Dispatch struct {
	Event Event
}

// Subscribe registers a snapshot outbox. The current snapshot is delivered
// immediately.
type Subscribe struct {
	ID     string
	Outbox chan Snapshot
}

type Unsubscribe struct{ ID string }

type Shutdown struct{}

// GetView reflects internal state without data races; tests use it.
type GetView struct {
	Reply chan View
}

func (Dispatch) isSessionMsg()    {}
func (Subscribe) isSessionMsg()   {}
func (Unsubscribe) isSessionMsg() {}
func (Shutdown) isSessionMsg()    {}
func (GetView) isSessionMsg()     {}

type Snapshot struct {
	Version int
	State   State
}

type View struct {
	Version        int
	NumSubscribers int
	State          State
}

// Session serializes all state mutation onto one goroutine: the only
// writer is the loop draining the inbox, so handlers need no locks.
type Session struct {
	inbox   chan Msg
	state   State
	version int
	subs    map[string]chan Snapshot
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, initial State, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:  make(chan Msg, 64),
		state:  initial,
		subs:   make(map[string]chan Snapshot),
		log:    log.Named("session"),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.loop()
	return s
}

// Inbox exposes the message channel to the dispatcher and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has shut down and stops answering.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Dispatch:
				s.state = Apply(s.state, msg.Event)
				s.version++
				s.broadcast(Snapshot{Version: s.version, State: s.state})

			case Subscribe:
				s.subs[msg.ID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: s.version, State: s.state}

			case Unsubscribe:
				delete(s.subs, msg.ID)

			case GetView:
				msg.Reply <- View{
					Version:        s.version,
					NumSubscribers: len(s.subs),
					State:          s.state,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.cancel()
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is slow/full - drop them.
			s.log.Warn("dropping slow snapshot subscriber", zap.String("id", id))
			close(ch)
			delete(s.subs, id)
		}
	}
}
