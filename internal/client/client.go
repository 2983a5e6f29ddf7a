// Package client is the embeddable engine for one multiplayer quiz
// session. It owns the supervisor, routes guarded server events into the
// session reducer, and exposes intents plus a snapshot subscription; a UI
// renders snapshots and calls intents, nothing more.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/guard"
	"github.com/birdr-pro/quizwire/internal/protocol"
	"github.com/birdr-pro/quizwire/internal/session"
	"github.com/birdr-pro/quizwire/internal/supervisor"
	"github.com/birdr-pro/quizwire/internal/tokenstore"
	"github.com/birdr-pro/quizwire/internal/transport"
)

var (
	ErrNotHost          = errors.New("only the host may do that")
	ErrAutoAdvance      = errors.New("server advances questions in challenge mode")
	ErrAlreadySubmitted = errors.New("answer already submitted for this question")
)

type NoticeKind string

const (
	NoticeGameStarted  NoticeKind = "game_started"
	NoticePlayerJoined NoticeKind = "player_joined"
	// NoticeDisconnected fires once, after retries are exhausted and the
	// session cannot self-heal.
	NoticeDisconnected NoticeKind = "disconnected"
)

type Notice struct {
	Kind NoticeKind
	Name string
	Err  error
}

type Options struct {
	// BaseURL is the backend origin (http/https); the socket URL is
	// derived from it unless SocketURL overrides it for development.
	BaseURL   string
	SocketURL string
	Language  string

	MaxRetries int
	RetryDelay time.Duration
	Dialer     transport.Dialer
	Store      *tokenstore.Store
	Logger     *zap.Logger
}

type Client struct {
	log    *zap.Logger
	player protocol.Player
	mode   protocol.Mode

	sup  *supervisor.Supervisor
	sess *session.Session
	val  *guard.Validator

	notices   chan Notice
	routeDone chan struct{}
	leaveOnce sync.Once
}

// Join opens the session: it stands up the state machine, dials the game
// socket, and keeps both alive until Leave.
func Join(ctx context.Context, game protocol.Game, player protocol.Player, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("client")

	socketURL := opts.SocketURL
	if socketURL == "" {
		var err error
		socketURL, err = transport.SocketURL(opts.BaseURL, game.Token)
		if err != nil {
			return nil, err
		}
	}

	handshake, err := protocol.EncodeIntent(protocol.JoinGame{
		PlayerToken:  player.Token,
		LanguageCode: opts.Language,
	})
	if err != nil {
		return nil, err
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.NewWebSocketDialer(log)
	}

	c := &Client{
		log:       log,
		player:    player,
		mode:      game.Mode,
		sess:      session.New(ctx, session.NewState(game), log),
		val:       guard.NewValidator(game.Token, log),
		notices:   make(chan Notice, 8),
		routeDone: make(chan struct{}),
	}
	c.sess.Inbox() <- session.Dispatch{Event: session.JoinRequested{}}

	if opts.Store != nil {
		if err := opts.Store.Save(tokenstore.Tokens{
			PlayerToken: player.Token,
			GameToken:   game.Token,
		}); err != nil {
			log.Warn("could not persist tokens", zap.Error(err))
		}
	}

	c.sup = supervisor.Start(dialer, supervisor.Config{
		SocketURL:  socketURL,
		Handshake:  handshake,
		MaxRetries: opts.MaxRetries,
		MinDelay:   opts.RetryDelay,
	}, log)

	go c.route()
	return c, nil
}

// Notices delivers the few user-visible events. Transient reconnects are
// not among them.
func (c *Client) Notices() <-chan Notice { return c.notices }

// Snapshots subscribes to state snapshots; the current one arrives first.
func (c *Client) Snapshots(id string) <-chan session.Snapshot {
	out := make(chan session.Snapshot, 8)
	c.sess.Inbox() <- session.Subscribe{ID: id, Outbox: out}
	return out
}

// View reads the current state synchronously. After Leave the session no
// longer answers; a zero View is returned instead of blocking.
func (c *Client) View() session.View {
	reply := make(chan session.View, 1)
	select {
	case c.sess.Inbox() <- session.GetView{Reply: reply}:
	case <-c.sess.Done():
		return session.View{}
	}
	select {
	case v := <-reply:
		return v
	case <-c.sess.Done():
		return session.View{}
	}
}

// StartGame sends the host's start intent.
func (c *Client) StartGame(ctx context.Context) error {
	if !c.player.IsHost {
		return ErrNotHost
	}
	return c.send(ctx, protocol.StartGame{PlayerToken: c.player.Token})
}

// NextQuestion sends the host's advance intent. In challenge mode the
// server advances on its own and the client never sends this.
func (c *Client) NextQuestion(ctx context.Context) error {
	if c.mode == protocol.ModeChallenge {
		return ErrAutoAdvance
	}
	if !c.player.IsHost {
		return ErrNotHost
	}
	return c.send(ctx, protocol.NextQuestion{PlayerToken: c.player.Token})
}

// SubmitAnswer submits the local player's pick (nil = "don't know").
// Exactly one submission fires per question; if the socket is down the
// intent is dropped, not queued, since an answer has no meaning after the
// question times out server-side.
func (c *Client) SubmitAnswer(ctx context.Context, questionID int, answerID *int) error {
	view := c.View()
	if view.State.Submitted {
		c.log.Info("ignoring duplicate submission",
			zap.Int("sequence", view.State.CurrentSequence))
		return ErrAlreadySubmitted
	}
	err := c.send(ctx, protocol.SubmitAnswer{
		PlayerToken: c.player.Token,
		QuestionID:  questionID,
		AnswerID:    answerID,
	})
	if err != nil {
		return err
	}
	c.sess.Inbox() <- session.Dispatch{Event: session.SubmissionFired{
		Sequence: view.State.CurrentSequence,
	}}
	return nil
}

// Leave tears the session down: the supervisor stops before the socket
// closes, so no reconnect can race the teardown. Safe to call twice.
func (c *Client) Leave() {
	c.leaveOnce.Do(func() {
		c.sup.Stop()
		<-c.routeDone
		c.sess.Inbox() <- session.Dispatch{Event: session.Left{}}
		c.sess.Inbox() <- session.Shutdown{}
	})
}

func (c *Client) send(ctx context.Context, intent protocol.Intent) error {
	frame, err := protocol.EncodeIntent(intent)
	if err != nil {
		return err
	}
	if err := c.sup.Send(ctx, frame); err != nil {
		c.log.Warn("intent dropped, socket not ready", zap.Error(err))
		return err
	}
	return nil
}

// route drains the supervisor, decoding frames and feeding guarded events
// to the reducer. All session mutation happens on this one goroutine.
func (c *Client) route() {
	defer close(c.routeDone)
	defer close(c.notices)
	for ev := range c.sup.Events() {
		switch e := ev.(type) {
		case supervisor.Connected:
			// Identity was re-announced; the server replays state next.

		case supervisor.FrameReceived:
			sev, err := protocol.DecodeServerEvent(e.Data)
			if err != nil {
				// Forward compatibility: unknown or malformed frames are
				// dropped, never fatal.
				c.log.Warn("dropping frame", zap.Error(err))
				continue
			}
			c.dispatch(sev)

		case supervisor.GaveUp:
			c.notify(Notice{Kind: NoticeDisconnected, Err: e.Err})
		}
	}
}

func (c *Client) dispatch(ev protocol.ServerEvent) {
	switch e := ev.(type) {
	case protocol.PlayersUpdated:
		c.sess.Inbox() <- session.Dispatch{Event: session.RosterReplaced{Players: e.Players}}

	case protocol.PlayerJoined:
		c.sess.Inbox() <- session.Dispatch{Event: session.PeerJoined{Name: e.PlayerName}}
		c.notify(Notice{Kind: NoticePlayerJoined, Name: e.PlayerName})

	case protocol.QuestionPosted:
		if !c.val.Question(&e.Question) {
			return
		}
		c.sess.Inbox() <- session.Dispatch{Event: session.QuestionAdvanced{Question: e.Question}}

	case protocol.GameStarted:
		c.sess.Inbox() <- session.Dispatch{Event: session.Started{}}
		c.notify(Notice{Kind: NoticeGameStarted})

	case protocol.GameUpdated:
		if !c.val.Token(e.Game.Token) {
			return
		}
		c.sess.Inbox() <- session.Dispatch{Event: session.GameRefreshed{Game: e.Game, At: time.Now()}}

	case protocol.AnswerChecked:
		c.sess.Inbox() <- session.Dispatch{Event: session.AnswerResolved{Answer: e.Answer}}
	}
}

func (c *Client) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
		c.log.Warn("notice dropped, consumer not keeping up", zap.String("kind", string(n.Kind)))
	}
}
