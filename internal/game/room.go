// Package game runs one multiplayer quiz room as an actor: all mutation
// happens on the inbox loop, and connected sockets only ever see encoded
// frames on their outbox channels. The room is the single source of truth
// for scoring and question sequencing; clients mirror it.
package game

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

type Msg interface{ isRoomMsg() }

// Attach registers a socket's outbox. The socket is anonymous until a
// join_game intent binds it to a player token.
type Attach struct {
	ClientID string
	Outbox   chan []byte
}

type Detach struct{ ClientID string }

// AddPlayer registers a participant created through the REST surface.
type AddPlayer struct {
	Player protocol.Player
	Reply  chan bool
}

// FromClient carries one decoded intent from a socket.
type FromClient struct {
	ClientID string
	Intent   protocol.Intent
}

// GetGame reads the serialized game object (REST fetch uses this).
type GetGame struct {
	Reply chan protocol.Game
}

// GetView reflects internal state without data races; tests use it.
type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Attach) isRoomMsg()     {}
func (Detach) isRoomMsg()     {}
func (AddPlayer) isRoomMsg()  {}
func (FromClient) isRoomMsg() {}
func (GetGame) isRoomMsg()    {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

type View struct {
	Started    bool
	Ended      bool
	Sequence   int
	NumClients int
	Roster     []protocol.RosterEntry
}

type playerState struct {
	player     protocol.Player
	score      int
	status     string
	lastAnswer *protocol.Answer
}

type clientConn struct {
	outbox      chan []byte
	playerToken string
}

type Room struct {
	inbox   chan Msg
	game    protocol.Game
	players map[string]*playerState // keyed by player token
	order   []string                // join order, for stable ranking ties
	clients map[string]*clientConn

	questions Source
	question  *protocol.Question
	correct   int // species id for the current question
	answered  map[string]*protocol.Answer

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(parent context.Context, g protocol.Game, src Source, log *zap.Logger) *Room {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:     make(chan Msg, 64),
		game:      g,
		players:   make(map[string]*playerState),
		clients:   make(map[string]*clientConn),
		questions: src,
		answered:  make(map[string]*protocol.Answer),
		log:       log.Named("room").With(zap.String("game", g.Token)),
		ctx:       ctx,
		cancel:    cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Attach:
				r.clients[msg.ClientID] = &clientConn{outbox: msg.Outbox}

			case Detach:
				// Close the outbox so the socket's writer goroutine exits.
				// A client already dropped by deliver is gone from the map,
				// so the channel is closed exactly once.
				if c := r.clients[msg.ClientID]; c != nil {
					close(c.outbox)
					delete(r.clients, msg.ClientID)
				}

			case AddPlayer:
				ok := r.addPlayer(msg.Player)
				msg.Reply <- ok

			case FromClient:
				r.handleIntent(msg.ClientID, msg.Intent)

			case GetGame:
				msg.Reply <- r.serializeGame()

			case GetView:
				msg.Reply <- View{
					Started:    r.game.Progress > 0,
					Ended:      r.game.Ended,
					Sequence:   r.game.Progress,
					NumClients: len(r.clients),
					Roster:     r.roster(),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) addPlayer(p protocol.Player) bool {
	if _, exists := r.players[p.Token]; exists {
		return false
	}
	if p.IsHost {
		for _, ps := range r.players {
			if ps.player.IsHost {
				return false // exactly one host per session
			}
		}
		host := rosterEntry(&playerState{player: p, status: protocol.StatusWaiting})
		r.game.Host = &host
	}
	r.players[p.Token] = &playerState{player: p, status: protocol.StatusWaiting}
	r.order = append(r.order, p.Token)
	return true
}

func (r *Room) handleIntent(clientID string, intent protocol.Intent) {
	switch in := intent.(type) {
	case protocol.JoinGame:
		r.handleJoin(clientID, in)
	case protocol.StartGame:
		r.handleStart(in)
	case protocol.NextQuestion:
		r.handleNext(in)
	case protocol.SubmitAnswer:
		r.handleSubmit(in)
	}
}

// handleJoin binds the socket to its player and replays the full session
// state to the joiner: roster, game, current question, own answer. This is
// what makes reconnection restore a dropped client.
func (r *Room) handleJoin(clientID string, in protocol.JoinGame) {
	c := r.clients[clientID]
	if c == nil {
		return
	}
	ps := r.players[in.PlayerToken]
	if ps == nil {
		r.log.Warn("join with unknown player token", zap.String("token", in.PlayerToken))
		return
	}
	c.playerToken = in.PlayerToken
	if in.LanguageCode != "" {
		ps.player.Language = in.LanguageCode
	}

	r.broadcast(protocol.PlayerJoined{PlayerName: ps.player.Name})
	r.broadcast(protocol.PlayersUpdated{Players: r.roster()})
	r.sendTo(clientID, protocol.GameUpdated{Game: r.serializeGame()})
	if r.question != nil {
		r.sendTo(clientID, protocol.QuestionPosted{Question: *r.question})
	}
	if a := r.answered[in.PlayerToken]; a != nil {
		r.sendTo(clientID, protocol.AnswerChecked{Answer: *a})
	}
}

func (r *Room) handleStart(in protocol.StartGame) {
	ps := r.players[in.PlayerToken]
	if ps == nil || !ps.player.IsHost {
		r.log.Warn("start_game from non-host ignored")
		return
	}
	if r.game.Progress > 0 {
		return
	}
	r.broadcast(protocol.GameStarted{})
	r.advance()
}

func (r *Room) handleNext(in protocol.NextQuestion) {
	ps := r.players[in.PlayerToken]
	if ps == nil || !ps.player.IsHost {
		r.log.Warn("next_question from non-host ignored")
		return
	}
	if r.game.Ended {
		return
	}
	if r.game.Progress >= r.game.Length {
		r.end()
		return
	}
	r.advance()
}

func (r *Room) handleSubmit(in protocol.SubmitAnswer) {
	ps := r.players[in.PlayerToken]
	if ps == nil || r.question == nil || in.QuestionID != r.question.ID {
		r.log.Warn("submission for no active question dropped",
			zap.Int("question_id", in.QuestionID))
		return
	}

	answer := r.answered[in.PlayerToken]
	if answer == nil {
		// First write wins; duplicates just get the original verdict back.
		correct := in.AnswerID != nil && *in.AnswerID == r.correct
		score := 0
		if correct {
			score = 10
		}
		answer = &protocol.Answer{
			ID:         len(r.answered) + r.question.ID*100,
			QuestionID: r.question.ID,
			Sequence:   r.question.Sequence,
			Correct:    correct,
			Score:      score,
			Species:    r.questions.Species(r.correct),
		}
		if in.AnswerID != nil {
			answer.Answer = r.questions.Species(*in.AnswerID)
		}
		r.answered[in.PlayerToken] = answer
		ps.score += score
		ps.lastAnswer = answer
		if correct {
			ps.status = protocol.StatusCorrect
		} else {
			ps.status = protocol.StatusIncorrect
		}
	}

	r.sendToPlayer(in.PlayerToken, protocol.AnswerChecked{Answer: *answer})
	r.broadcast(protocol.PlayersUpdated{Players: r.roster()})

	if r.game.Mode == protocol.ModeChallenge && len(r.answered) >= len(r.players) {
		if r.game.Progress >= r.game.Length {
			r.end()
		} else {
			r.advance()
		}
	}
}

func (r *Room) advance() {
	seq := r.game.Progress + 1
	q, correct := r.questions.Next(r.game.Token, seq)
	r.question = &q
	r.correct = correct
	r.game.Progress = seq
	r.answered = make(map[string]*protocol.Answer)
	for _, ps := range r.players {
		ps.status = protocol.StatusWaiting
	}
	r.broadcast(protocol.QuestionPosted{Question: q})
	r.broadcast(protocol.PlayersUpdated{Players: r.roster()})
}

func (r *Room) end() {
	r.game.Ended = true
	r.broadcast(protocol.GameUpdated{Game: r.serializeGame()})
	r.broadcast(protocol.PlayersUpdated{Players: r.roster()})
}

func (r *Room) serializeGame() protocol.Game {
	return r.game
}

// roster builds the full-replace participant snapshot, ordered by
// descending score with join order breaking ties.
func (r *Room) roster() []protocol.RosterEntry {
	entries := make([]protocol.RosterEntry, 0, len(r.order))
	for _, token := range r.order {
		entries = append(entries, rosterEntry(r.players[token]))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Ranking = i + 1
	}
	return entries
}

func rosterEntry(ps *playerState) protocol.RosterEntry {
	return protocol.RosterEntry{
		Name:       ps.player.Name,
		Token:      ps.player.Token,
		IsHost:     ps.player.IsHost,
		Status:     ps.status,
		Score:      ps.score,
		LastAnswer: ps.lastAnswer,
	}
}

func (r *Room) broadcast(ev protocol.ServerEvent) {
	frame, err := protocol.EncodeServerEvent(ev)
	if err != nil {
		r.log.Error("encode broadcast", zap.Error(err))
		return
	}
	for id, c := range r.clients {
		r.deliver(id, c, frame)
	}
}

func (r *Room) sendTo(clientID string, ev protocol.ServerEvent) {
	c := r.clients[clientID]
	if c == nil {
		return
	}
	frame, err := protocol.EncodeServerEvent(ev)
	if err != nil {
		r.log.Error("encode frame", zap.Error(err))
		return
	}
	r.deliver(clientID, c, frame)
}

// sendToPlayer reaches every socket bound to the token, so a player with a
// reconnected socket still gets their verdict.
func (r *Room) sendToPlayer(playerToken string, ev protocol.ServerEvent) {
	frame, err := protocol.EncodeServerEvent(ev)
	if err != nil {
		r.log.Error("encode frame", zap.Error(err))
		return
	}
	for id, c := range r.clients {
		if c.playerToken == playerToken {
			r.deliver(id, c, frame)
		}
	}
}

func (r *Room) deliver(id string, c *clientConn, frame []byte) {
	select {
	case c.outbox <- frame:
	default:
		// Client is slow/full - drop them.
		close(c.outbox)
		delete(r.clients, id)
	}
}
