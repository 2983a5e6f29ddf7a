package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdr-pro/quizwire/internal/game"
	"github.com/birdr-pro/quizwire/internal/hub"
	"github.com/birdr-pro/quizwire/internal/httpapi"
	"github.com/birdr-pro/quizwire/internal/protocol"
	"github.com/birdr-pro/quizwire/internal/restapi"
	"github.com/birdr-pro/quizwire/internal/session"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, game.BirdSource{}, nil)
	ts := httptest.NewServer(httpapi.SetupRoutes(h, nil))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts
}

func scoreOf(s session.State, token string) int {
	for _, p := range s.Players {
		if p.Token == token {
			return p.Score
		}
	}
	return -1
}

// TestTwoClientsPlayARound drives a full round over real sockets: host and
// guest join, the host starts, answers a question correctly, and both
// clients observe the same roster and phase progression.
func TestTwoClientsPlayARound(t *testing.T) {
	ts := startBackend(t)
	ctx := context.Background()
	api := restapi.NewClient(ts.URL, nil)

	g, host, err := api.CreateGame(ctx, "alice", 2, protocol.ModeClassic)
	require.NoError(t, err)
	require.True(t, host.IsHost)
	require.Equal(t, 2, g.Length)
	require.NotNil(t, g.Host, "creation response carries the host")
	assert.Equal(t, "alice", g.Host.Name)

	guest, err := api.JoinGame(ctx, g.Token, "bob")
	require.NoError(t, err)
	require.False(t, guest.IsHost)

	fetched, err := api.FetchGame(ctx, g.Token)
	require.NoError(t, err)
	require.Equal(t, g.Token, fetched.Token)
	require.NotNil(t, fetched.Host)
	assert.Equal(t, g.Host.Token, fetched.Host.Token, "both REST surfaces report the same host")

	c1, err := Join(ctx, *g, *host, Options{BaseURL: ts.URL, Language: "en"})
	require.NoError(t, err)
	defer c1.Leave()
	c2, err := Join(ctx, *g, *guest, Options{BaseURL: ts.URL, Language: "en"})
	require.NoError(t, err)
	defer c2.Leave()

	// Both reach the lobby with the full roster.
	for _, c := range []*Client{c1, c2} {
		s := waitState(t, c, func(s session.State) bool {
			return s.Phase == session.PhaseLobby && len(s.Players) == 2
		})
		assert.Len(t, s.Players, 2)
	}

	require.NoError(t, c1.StartGame(ctx))

	var q protocol.Question
	for _, c := range []*Client{c1, c2} {
		s := waitState(t, c, func(s session.State) bool {
			return s.Phase == session.PhaseQuestionActive && s.CurrentSequence == 1
		})
		require.NotNil(t, s.Question)
		q = *s.Question
	}

	// The host answers correctly; the deterministic source makes the
	// first bird the right answer for sequence 1.
	correct := game.Birds[0].ID
	require.NoError(t, c1.SubmitAnswer(ctx, q.ID, &correct))

	s1 := waitState(t, c1, func(s session.State) bool {
		return s.Phase == session.PhaseAwaitingResolution && s.Answer != nil
	})
	assert.True(t, s1.Answer.Correct)
	assert.Equal(t, 10, s1.Answer.Score)

	// Both rosters reflect the host's score.
	for _, c := range []*Client{c1, c2} {
		s := waitState(t, c, func(s session.State) bool {
			return scoreOf(s, host.Token) == 10
		})
		assert.Equal(t, 10, scoreOf(s, host.Token))
	}

	// Guest answers wrong, host advances, game runs to its end.
	wrong := game.Birds[3].ID
	require.NoError(t, c2.SubmitAnswer(ctx, q.ID, &wrong))
	waitState(t, c2, func(s session.State) bool {
		return s.Answer != nil && !s.Answer.Correct
	})

	require.NoError(t, c1.NextQuestion(ctx))
	for _, c := range []*Client{c1, c2} {
		waitState(t, c, func(s session.State) bool { return s.CurrentSequence == 2 })
	}

	require.NoError(t, c1.NextQuestion(ctx))
	for _, c := range []*Client{c1, c2} {
		s := waitState(t, c, func(s session.State) bool { return s.Game.Ended })
		assert.True(t, s.Phase == session.PhaseResults || s.Phase == session.PhaseEnded)
	}
}

// TestGuestNextQuestionIgnored checks the server stays authoritative when a
// non-host intent slips past the UI affordance.
func TestGuestNextQuestionIgnored(t *testing.T) {
	ts := startBackend(t)
	ctx := context.Background()
	api := restapi.NewClient(ts.URL, nil)

	g, host, err := api.CreateGame(ctx, "alice", 2, protocol.ModeClassic)
	require.NoError(t, err)
	guest, err := api.JoinGame(ctx, g.Token, "bob")
	require.NoError(t, err)

	c1, err := Join(ctx, *g, *host, Options{BaseURL: ts.URL})
	require.NoError(t, err)
	defer c1.Leave()

	// The guest pretends to be a host client-side.
	forged := *guest
	forged.IsHost = true
	c2, err := Join(ctx, *g, forged, Options{BaseURL: ts.URL})
	require.NoError(t, err)
	defer c2.Leave()

	waitState(t, c1, func(s session.State) bool { return s.Phase == session.PhaseLobby })
	waitState(t, c2, func(s session.State) bool { return s.Phase == session.PhaseLobby })

	require.NoError(t, c1.StartGame(ctx))
	waitState(t, c1, func(s session.State) bool { return s.CurrentSequence == 1 })

	// The forged advance goes out but the server ignores it.
	require.NoError(t, c2.NextQuestion(ctx))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, c1.View().State.CurrentSequence)
	assert.Equal(t, 1, c2.View().State.CurrentSequence)
}
