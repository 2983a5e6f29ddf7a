package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdr-pro/quizwire/internal/protocol"
	"github.com/birdr-pro/quizwire/internal/session"
	"github.com/birdr-pro/quizwire/internal/transport"
)

type scriptConn struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan transport.Event
	once   sync.Once
}

func (c *scriptConn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *scriptConn) Events() <-chan transport.Event { return c.events }

func (c *scriptConn) Close() error {
	c.once.Do(func() {
		c.events <- transport.Closed{}
		close(c.events)
	})
	return nil
}

func (c *scriptConn) push(t *testing.T, ev protocol.ServerEvent) {
	t.Helper()
	frame, err := protocol.EncodeServerEvent(ev)
	require.NoError(t, err)
	c.events <- transport.Frame{Data: frame}
}

func (c *scriptConn) pushRaw(data []byte) {
	c.events <- transport.Frame{Data: data}
}

type scriptDialer struct {
	mu    sync.Mutex
	conns []*scriptConn
	fail  error
}

func (d *scriptDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func (d *scriptDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	c := &scriptConn{events: make(chan transport.Event, 32)}
	c.events <- transport.Opened{}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *scriptDialer) conn(t *testing.T, i int) *scriptConn {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		if len(d.conns) > i {
			c := d.conns[i]
			d.mu.Unlock()
			return c
		}
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for dial %d", i)
	return nil
}

func waitState(t *testing.T, c *Client, pred func(session.State) bool) session.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := c.View().State
		if pred(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	s := c.View().State
	t.Fatalf("state never matched; last: phase=%v seq=%d", s.Phase, s.CurrentSequence)
	return s
}

func newScriptedClient(t *testing.T, game protocol.Game, player protocol.Player) (*Client, *scriptDialer) {
	t.Helper()
	d := &scriptDialer{}
	c, err := Join(context.Background(), game, player, Options{
		SocketURL: "ws://test/mpg/" + game.Token,
		Dialer:    d,
		Language:  "en",
	})
	require.NoError(t, err)
	t.Cleanup(c.Leave)
	return c, d
}

func question(gameToken string, seq int) protocol.Question {
	return protocol.Question{
		ID:       seq,
		Sequence: seq,
		Game:     &protocol.GameRef{Token: gameToken},
		Options:  []protocol.Species{{ID: 1, Name: "Eurasian Wren"}},
	}
}

func TestClient_StaleSessionQuestionDiscarded(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, d := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice", IsHost: true})
	conn := d.conn(t, 0)

	conn.push(t, protocol.PlayersUpdated{Players: []protocol.RosterEntry{{Name: "alice", Token: "p1"}}})
	waitState(t, c, func(s session.State) bool { return s.Phase == session.PhaseLobby })

	// A question from the previous session arrives after the client has
	// moved on to game NEW; it must be discarded wholesale.
	conn.push(t, protocol.QuestionPosted{Question: question("OLD", 5)})
	conn.push(t, protocol.QuestionPosted{Question: question("NEW", 1)})

	s := waitState(t, c, func(s session.State) bool { return s.CurrentSequence == 1 })
	assert.Equal(t, 1, s.CurrentSequence, "stale question must not advance the sequence")
	require.NotNil(t, s.Question)
	assert.Equal(t, "NEW", s.Question.Game.Token)
}

func TestClient_WrongTokenGameUpdateDiscarded(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, d := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice"})
	conn := d.conn(t, 0)

	conn.push(t, protocol.GameUpdated{Game: protocol.Game{Token: "OLD", Ended: true}})
	conn.push(t, protocol.PlayersUpdated{Players: []protocol.RosterEntry{{Name: "alice"}}})

	s := waitState(t, c, func(s session.State) bool { return s.Phase == session.PhaseLobby })
	assert.False(t, s.Game.Ended, "another session's end must not end this one")
}

func TestClient_UnknownActionIgnored(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, d := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice"})
	conn := d.conn(t, 0)

	conn.pushRaw([]byte(`{"action":"rematch_invitation","new_game_token":"X"}`))
	conn.pushRaw([]byte(`{not json`))
	conn.push(t, protocol.PlayersUpdated{Players: []protocol.RosterEntry{{Name: "alice"}}})

	// The bad frames are dropped and the stream keeps working.
	waitState(t, c, func(s session.State) bool { return s.Phase == session.PhaseLobby })
}

func TestClient_SubmitOncePerQuestion(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, d := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice", IsHost: true})
	conn := d.conn(t, 0)

	conn.push(t, protocol.PlayersUpdated{Players: []protocol.RosterEntry{{Name: "alice"}}})
	conn.push(t, protocol.QuestionPosted{Question: question("NEW", 1)})
	waitState(t, c, func(s session.State) bool { return s.Phase == session.PhaseQuestionActive })

	id := 1
	require.NoError(t, c.SubmitAnswer(context.Background(), 1, &id))
	waitState(t, c, func(s session.State) bool { return s.Phase == session.PhaseAwaitingResolution })

	err := c.SubmitAnswer(context.Background(), 1, &id)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestClient_HostOnlyAffordances(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, _ := newScriptedClient(t, g, protocol.Player{Token: "p2", Name: "bob"})

	assert.ErrorIs(t, c.StartGame(context.Background()), ErrNotHost)
	assert.ErrorIs(t, c.NextQuestion(context.Background()), ErrNotHost)
}

func TestClient_ChallengeModeNeverSendsNext(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeChallenge, Length: 3}
	c, _ := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice", IsHost: true})

	assert.ErrorIs(t, c.NextQuestion(context.Background()), ErrAutoAdvance)
}

func TestClient_ViewAfterLeaveReturnsZero(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	c, _ := newScriptedClient(t, g, protocol.Player{Token: "p1", Name: "alice"})

	c.Leave()

	done := make(chan session.View, 1)
	go func() { done <- c.View() }()
	select {
	case v := <-done:
		assert.Equal(t, session.View{}, v)
	case <-time.After(time.Second):
		t.Fatalf("View blocked after Leave")
	}
}

func TestClient_FatalNoticeOnExhaustedRetries(t *testing.T) {
	g := protocol.Game{Token: "NEW", Mode: protocol.ModeClassic, Length: 3}
	d := &scriptDialer{}
	c, err := Join(context.Background(), g, protocol.Player{Token: "p1", Name: "alice"}, Options{
		SocketURL:  "ws://test/mpg/NEW",
		Dialer:     d,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Leave()

	// The socket drops and no redial succeeds: one allowed retry, then
	// the budget is spent.
	conn := d.conn(t, 0)
	d.setFail(errors.New("connection refused"))
	conn.Close()

	var fatal int
	for n := range c.Notices() {
		if n.Kind == NoticeDisconnected {
			fatal++
		}
	}
	assert.Equal(t, 1, fatal, "exactly one fatal notification")
}
