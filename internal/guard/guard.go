// Package guard rejects inbound state that does not belong to the game the
// client currently believes it is in. A failed check is never an error:
// mis-routed messages are transient noise from races between REST loads,
// navigation, and WebSocket pushes, so callers log and discard.
package guard

import (
	"go.uber.org/zap"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

// QuestionBelongsToGame reports whether the question's embedded game
// reference equals the expected token. Questions without a reference fail.
func QuestionBelongsToGame(q *protocol.Question, expectedToken string) bool {
	if q == nil || expectedToken == "" {
		return false
	}
	if q.Game == nil || q.Game.Token == "" {
		return false
	}
	return q.Game.Token == expectedToken
}

// TokenMatches is strict equality with empty tokens always failing.
func TokenMatches(received, expected string) bool {
	if received == "" || expected == "" {
		return false
	}
	return received == expected
}

// CurrentGameToken picks the authoritative token: the live session always
// wins over a persisted fallback. The fallback exists only to resume a
// session across a restart, never to override a live one.
func CurrentGameToken(live *protocol.Game, persisted string) string {
	if live != nil && live.Token != "" {
		return live.Token
	}
	return persisted
}

// Validator binds the predicates to one session's token so WebSocket
// handlers validate against the connection they were created for.
type Validator struct {
	token string
	log   *zap.Logger
}

func NewValidator(token string, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{token: token, log: log.Named("guard")}
}

func (v *Validator) ExpectedToken() string { return v.token }

// Question validates a question against the bound token, logging rejects.
func (v *Validator) Question(q *protocol.Question) bool {
	if QuestionBelongsToGame(q, v.token) {
		return true
	}
	var got string
	var id int
	if q != nil {
		id = q.ID
		if q.Game != nil {
			got = q.Game.Token
		}
	}
	v.log.Warn("discarding question for wrong game",
		zap.Int("question_id", id),
		zap.String("question_token", got),
		zap.String("expected_token", v.token))
	return false
}

// Token validates an arbitrary game token against the bound token.
func (v *Validator) Token(received string) bool {
	if TokenMatches(received, v.token) {
		return true
	}
	v.log.Warn("discarding message for wrong game",
		zap.String("received_token", received),
		zap.String("expected_token", v.token))
	return false
}
