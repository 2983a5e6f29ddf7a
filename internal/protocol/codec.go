package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrBadFrame      = errors.New("malformed frame")
)

// ServerEvent is the closed set of inbound messages. Unknown actions decode
// to ErrUnknownAction so callers can log and drop them without failing.
type ServerEvent interface{ isServerEvent() }

type PlayersUpdated struct {
	Players []RosterEntry
}

type PlayerJoined struct {
	PlayerName string
}

type QuestionPosted struct {
	Question Question
}

type GameStarted struct{}

type GameUpdated struct {
	Game Game
}

type AnswerChecked struct {
	Answer Answer
}

func (PlayersUpdated) isServerEvent() {}
func (PlayerJoined) isServerEvent()   {}
func (QuestionPosted) isServerEvent() {}
func (GameStarted) isServerEvent()    {}
func (GameUpdated) isServerEvent()    {}
func (AnswerChecked) isServerEvent()  {}

// serverFrame is the superset envelope for inbound frames.
type serverFrame struct {
	Action     string        `json:"action"`
	Players    []RosterEntry `json:"players,omitempty"`
	PlayerName string        `json:"player_name,omitempty"`
	Question   *Question     `json:"question,omitempty"`
	Game       *Game         `json:"game,omitempty"`
	Answer     *Answer       `json:"answer,omitempty"`
}

// DecodeServerEvent parses one inbound frame into its tagged event.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var f serverFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch f.Action {
	case ActionUpdatePlayers:
		return PlayersUpdated{Players: f.Players}, nil
	case ActionPlayerJoined:
		return PlayerJoined{PlayerName: f.PlayerName}, nil
	case ActionNewQuestion:
		if f.Question == nil {
			return nil, fmt.Errorf("%w: new_question without question", ErrBadFrame)
		}
		return QuestionPosted{Question: *f.Question}, nil
	case ActionGameStarted:
		return GameStarted{}, nil
	case ActionGameUpdated:
		if f.Game == nil {
			return nil, fmt.Errorf("%w: game_updated without game", ErrBadFrame)
		}
		return GameUpdated{Game: *f.Game}, nil
	case ActionAnswerChecked:
		if f.Answer == nil {
			return nil, fmt.Errorf("%w: answer_checked without answer", ErrBadFrame)
		}
		return AnswerChecked{Answer: *f.Answer}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, f.Action)
	}
}

// EncodeServerEvent renders a server event back into its wire frame. The
// reference server uses this; clients only decode.
func EncodeServerEvent(ev ServerEvent) ([]byte, error) {
	var f serverFrame
	switch e := ev.(type) {
	case PlayersUpdated:
		f = serverFrame{Action: ActionUpdatePlayers, Players: e.Players}
	case PlayerJoined:
		f = serverFrame{Action: ActionPlayerJoined, PlayerName: e.PlayerName}
	case QuestionPosted:
		f = serverFrame{Action: ActionNewQuestion, Question: &e.Question}
	case GameStarted:
		f = serverFrame{Action: ActionGameStarted}
	case GameUpdated:
		f = serverFrame{Action: ActionGameUpdated, Game: &e.Game}
	case AnswerChecked:
		f = serverFrame{Action: ActionAnswerChecked, Answer: &e.Answer}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, ev)
	}
	return json.Marshal(f)
}

// Intent is the closed set of outbound player actions. Every intent
// carries the acting player's token; the server rejects what the token
// does not authorize.
type Intent interface{ isIntent() }

type JoinGame struct {
	PlayerToken  string
	LanguageCode string
}

type StartGame struct {
	PlayerToken string
}

type NextQuestion struct {
	PlayerToken string
}

type SubmitAnswer struct {
	PlayerToken string
	QuestionID  int
	AnswerID    *int // nil = "don't know"
}

func (JoinGame) isIntent()     {}
func (StartGame) isIntent()    {}
func (NextQuestion) isIntent() {}
func (SubmitAnswer) isIntent() {}

// intentFrame is the superset envelope for outbound frames.
type intentFrame struct {
	Action       string `json:"action"`
	PlayerToken  string `json:"player_token"`
	LanguageCode string `json:"language_code,omitempty"`
	QuestionID   int    `json:"question_id,omitempty"`
	AnswerID     *int   `json:"answer_id"`
}

// EncodeIntent renders an outbound intent into its wire frame.
func EncodeIntent(in Intent) ([]byte, error) {
	switch i := in.(type) {
	case JoinGame:
		return json.Marshal(struct {
			Action       string `json:"action"`
			PlayerToken  string `json:"player_token"`
			LanguageCode string `json:"language_code,omitempty"`
		}{ActionJoinGame, i.PlayerToken, i.LanguageCode})
	case StartGame:
		return json.Marshal(struct {
			Action      string `json:"action"`
			PlayerToken string `json:"player_token"`
		}{ActionStartGame, i.PlayerToken})
	case NextQuestion:
		return json.Marshal(struct {
			Action      string `json:"action"`
			PlayerToken string `json:"player_token"`
		}{ActionNextQuestion, i.PlayerToken})
	case SubmitAnswer:
		return json.Marshal(struct {
			Action      string `json:"action"`
			PlayerToken string `json:"player_token"`
			QuestionID  int    `json:"question_id"`
			AnswerID    *int   `json:"answer_id"`
		}{ActionSubmitAnswer, i.PlayerToken, i.QuestionID, i.AnswerID})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, in)
	}
}

// DecodeIntent parses one outbound frame; the reference server's read loop
// uses this.
func DecodeIntent(data []byte) (Intent, error) {
	var f intentFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch f.Action {
	case ActionJoinGame:
		return JoinGame{PlayerToken: f.PlayerToken, LanguageCode: f.LanguageCode}, nil
	case ActionStartGame:
		return StartGame{PlayerToken: f.PlayerToken}, nil
	case ActionNextQuestion:
		return NextQuestion{PlayerToken: f.PlayerToken}, nil
	case ActionSubmitAnswer:
		return SubmitAnswer{PlayerToken: f.PlayerToken, QuestionID: f.QuestionID, AnswerID: f.AnswerID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, f.Action)
	}
}
