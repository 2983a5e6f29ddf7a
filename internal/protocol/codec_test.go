package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerEvent_KnownActions(t *testing.T) {
	ev, err := DecodeServerEvent([]byte(`{"action":"update_players","players":[{"name":"alice","token":"t1","score":10,"status":"correct"}]}`))
	require.NoError(t, err)
	players, ok := ev.(PlayersUpdated)
	require.True(t, ok)
	require.Len(t, players.Players, 1)
	assert.Equal(t, "alice", players.Players[0].Name)
	assert.Equal(t, 10, players.Players[0].Score)

	ev, err = DecodeServerEvent([]byte(`{"action":"player_joined","player_name":"bob"}`))
	require.NoError(t, err)
	assert.Equal(t, PlayerJoined{PlayerName: "bob"}, ev)

	ev, err = DecodeServerEvent([]byte(`{"action":"new_question","question":{"id":7,"sequence":2,"game":{"token":"ABC123"}}}`))
	require.NoError(t, err)
	q, ok := ev.(QuestionPosted)
	require.True(t, ok)
	assert.Equal(t, 7, q.Question.ID)
	assert.Equal(t, 2, q.Question.Sequence)
	require.NotNil(t, q.Question.Game)
	assert.Equal(t, "ABC123", q.Question.Game.Token)
	assert.Nil(t, q.Question.Options, "absent options means free-text mode")

	ev, err = DecodeServerEvent([]byte(`{"action":"game_started"}`))
	require.NoError(t, err)
	assert.Equal(t, GameStarted{}, ev)

	ev, err = DecodeServerEvent([]byte(`{"action":"game_updated","game":{"token":"ABC123","length":10,"ended":true}}`))
	require.NoError(t, err)
	g, ok := ev.(GameUpdated)
	require.True(t, ok)
	assert.True(t, g.Game.Ended)

	ev, err = DecodeServerEvent([]byte(`{"action":"answer_checked","answer":{"question_id":7,"correct":true,"score":10}}`))
	require.NoError(t, err)
	a, ok := ev.(AnswerChecked)
	require.True(t, ok)
	assert.True(t, a.Answer.Correct)
	assert.Equal(t, 10, a.Answer.Score)
}

func TestDecodeServerEvent_UnknownActionDropped(t *testing.T) {
	_, err := DecodeServerEvent([]byte(`{"action":"rematch_invitation","new_game_token":"X"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecodeServerEvent_Malformed(t *testing.T) {
	_, err := DecodeServerEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrBadFrame)

	// Truncated payloads must not panic the decoder either.
	_, err = DecodeServerEvent([]byte(`{"action":"new_question"}`))
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestIntentRoundTrip(t *testing.T) {
	id := 42
	for _, in := range []Intent{
		JoinGame{PlayerToken: "p1", LanguageCode: "en"},
		StartGame{PlayerToken: "p1"},
		NextQuestion{PlayerToken: "p1"},
		SubmitAnswer{PlayerToken: "p1", QuestionID: 7, AnswerID: &id},
		SubmitAnswer{PlayerToken: "p1", QuestionID: 7}, // "don't know"
	} {
		frame, err := EncodeIntent(in)
		require.NoError(t, err)
		got, err := DecodeIntent(frame)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestServerEventRoundTrip(t *testing.T) {
	in := QuestionPosted{Question: Question{
		ID:       7,
		Sequence: 3,
		Game:     &GameRef{Token: "ABC123"},
		Options:  []Species{{ID: 1, Name: "Eurasian Wren"}},
	}}
	frame, err := EncodeServerEvent(in)
	require.NoError(t, err)
	got, err := DecodeServerEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
