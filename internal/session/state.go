// Package session holds the client's view of one multiplayer game and the
// legal transitions between phases. The reducer is pure: every inbound
// handler is total, so a corrupt message can never crash the session.
package session

import (
	"time"

	"github.com/birdr-pro/quizwire/internal/protocol"
)

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseConnecting         Phase = "connecting"
	PhaseLobby              Phase = "lobby"
	PhaseQuestionActive     Phase = "question_active"
	PhaseAwaitingResolution Phase = "awaiting_resolution"
	PhaseResults            Phase = "results"
	PhaseEnded              Phase = "ended"
)

// terminal reports whether no further question can arrive in this phase.
func (p Phase) terminal() bool {
	return p == PhaseResults || p == PhaseEnded
}

// State is the authoritative-for-the-client view of the game. Roster and
// question are replaced wholesale, never mutated field-by-field.
type State struct {
	GameToken       string
	Game            protocol.Game
	Phase           Phase
	CurrentSequence int
	Players         []protocol.RosterEntry
	Question        *protocol.Question
	Answer          *protocol.Answer
	Submitted       bool
	LastJoined      string
	EndedAt         time.Time
}

// NewState seeds a session from the REST-fetched game object, before the
// socket has delivered anything.
func NewState(game protocol.Game) State {
	return State{
		GameToken: game.Token,
		Game:      game,
		Phase:     PhaseIdle,
	}
}

// Event is the closed set of inputs to the reducer: guarded server events
// plus the local intents that move the phase.
type Event interface{ isSessionEvent() }

// JoinRequested is raised when the client asks to join or rejoin.
type JoinRequested struct{}

// RosterReplaced carries the complete ordered participant set.
type RosterReplaced struct {
	Players []protocol.RosterEntry
}

// PeerJoined announces another participant by name.
type PeerJoined struct {
	Name string
}

// Started is the server's game_started broadcast.
type Started struct{}

// QuestionAdvanced carries a question that already passed the token guard.
type QuestionAdvanced struct {
	Question protocol.Question
}

// AnswerResolved is the server's verdict on a submitted answer.
type AnswerResolved struct {
	Answer protocol.Answer
}

// GameRefreshed replaces the game object wholesale. At stamps when the
// refresh was observed, so EndedAt can be set exactly once.
type GameRefreshed struct {
	Game protocol.Game
	At   time.Time
}

// SubmissionFired records that the local player's answer went out.
type SubmissionFired struct {
	Sequence int
}

// Left tears the session down to Idle.
type Left struct{}

func (JoinRequested) isSessionEvent()    {}
func (RosterReplaced) isSessionEvent()   {}
func (PeerJoined) isSessionEvent()       {}
func (Started) isSessionEvent()          {}
func (QuestionAdvanced) isSessionEvent() {}
func (AnswerResolved) isSessionEvent()   {}
func (GameRefreshed) isSessionEvent()    {}
func (SubmissionFired) isSessionEvent()  {}
func (Left) isSessionEvent()             {}

// Apply is the reducer. It never regresses the phase on late events and
// never errors: unexpected inputs leave the state unchanged.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case JoinRequested:
		if s.Phase == PhaseIdle {
			s.Phase = PhaseConnecting
		}
		return s

	case RosterReplaced:
		// Phase-independent full replace; last one wins.
		s.Players = e.Players
		if s.Phase == PhaseConnecting {
			s.Phase = PhaseLobby
		}
		return s

	case PeerJoined:
		s.LastJoined = e.Name
		return s

	case Started:
		if s.Phase == PhaseLobby {
			s.Phase = PhaseQuestionActive
		}
		return s

	case QuestionAdvanced:
		if s.Phase.terminal() {
			return s
		}
		if e.Question.Sequence < s.CurrentSequence {
			// Stale replay of an earlier question.
			return s
		}
		q := e.Question
		s.Question = &q
		s.Answer = nil
		s.Submitted = false
		s.CurrentSequence = q.Sequence
		s.Phase = PhaseQuestionActive
		return s

	case AnswerResolved:
		if e.Answer.Sequence != 0 && e.Answer.Sequence < s.CurrentSequence {
			// Late verdict for a prior question: score arrives via the
			// roster; the phase must not move backward.
			return s
		}
		a := e.Answer
		s.Answer = &a
		if s.Phase == PhaseQuestionActive {
			s.Phase = PhaseAwaitingResolution
		}
		if s.Phase == PhaseAwaitingResolution && s.Game.Length > 0 && s.CurrentSequence >= s.Game.Length {
			s.Phase = PhaseResults
		}
		return s

	case GameRefreshed:
		s.Game = e.Game
		if e.Game.Ended {
			if s.EndedAt.IsZero() {
				s.EndedAt = e.At
			}
			if s.Phase == PhaseResults {
				s.Phase = PhaseEnded
			} else if s.Phase != PhaseEnded {
				s.Phase = PhaseResults
			}
		}
		return s

	case SubmissionFired:
		if s.Phase == PhaseQuestionActive && !s.Submitted && e.Sequence == s.CurrentSequence {
			s.Submitted = true
			s.Phase = PhaseAwaitingResolution
		}
		return s

	case Left:
		return State{Phase: PhaseIdle}

	default:
		return s
	}
}
