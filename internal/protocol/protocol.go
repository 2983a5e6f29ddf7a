// Package protocol defines the JSON wire format shared by the quiz client
// and server: one WebSocket frame per message, discriminated by an "action"
// field.
package protocol

// Inbound (server -> client) actions.
const (
	ActionUpdatePlayers = "update_players"
	ActionPlayerJoined  = "player_joined"
	ActionNewQuestion   = "new_question"
	ActionGameStarted   = "game_started"
	ActionGameUpdated   = "game_updated"
	ActionAnswerChecked = "answer_checked"
)

// Outbound (client -> server) actions.
const (
	ActionJoinGame     = "join_game"
	ActionStartGame    = "start_game"
	ActionNextQuestion = "next_question"
	ActionSubmitAnswer = "submit_answer"
)

// Mode selects who advances the game to the next question.
type Mode string

const (
	// ModeClassic advances on an explicit host intent.
	ModeClassic Mode = "classic"
	// ModeChallenge advances server-side once every player has answered.
	ModeChallenge Mode = "challenge"
)

// Game is the full game object as the server serializes it. The server is
// the single source of truth; clients replace their copy wholesale on every
// game_updated frame.
type Game struct {
	Token       string       `json:"token"`
	Mode        Mode         `json:"mode"`
	Level       string       `json:"level,omitempty"`
	Language    string       `json:"language,omitempty"`
	Multiplayer bool         `json:"multiplayer"`
	Length      int          `json:"length"`
	Progress    int          `json:"progress"`
	Media       string       `json:"media,omitempty"`
	Host        *RosterEntry `json:"host,omitempty"`
	Ended       bool         `json:"ended"`
}

// GameRef is the game reference embedded in a Question; only the token is
// carried, which is all the guard needs.
type GameRef struct {
	Token string `json:"token"`
}

// Player is the local participant's identity. The token is the credential
// presented on join and on every submitted intent.
type Player struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	IsHost   bool   `json:"is_host"`
}

// Player status values as they appear in the roster.
const (
	StatusWaiting   = "waiting"
	StatusCorrect   = "correct"
	StatusIncorrect = "incorrect"
)

// RosterEntry is one participant as seen by everyone in the game. The
// roster arrives as a full-replace snapshot, ordered by descending score.
type RosterEntry struct {
	Name       string  `json:"name"`
	Token      string  `json:"token"`
	IsHost     bool    `json:"is_host"`
	Status     string  `json:"status"`
	Score      int     `json:"score"`
	LastAnswer *Answer `json:"last_answer,omitempty"`
	Ranking    int     `json:"ranking,omitempty"`
}

// Species is one answer option.
type Species struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	NameLatin string `json:"name_latin,omitempty"`
}

// MediaRef points at one image/video/sound asset for a question.
type MediaRef struct {
	URL         string `json:"url"`
	Link        string `json:"link,omitempty"`
	Contributor string `json:"contributor,omitempty"`
}

// Question carries the media to identify plus the closed option set. An
// absent Options slice signals free-text mode. Game is the embedded
// reference the token guard checks against the live session.
type Question struct {
	ID       int        `json:"id"`
	Sequence int        `json:"sequence"`
	Done     bool       `json:"done"`
	Game     *GameRef   `json:"game,omitempty"`
	Options  []Species  `json:"options,omitempty"`
	Images   []MediaRef `json:"images,omitempty"`
	Videos   []MediaRef `json:"videos,omitempty"`
	Sounds   []MediaRef `json:"sounds,omitempty"`
}

// Answer is the server's resolution of one submitted answer. Species is
// the correct species, Answer what the player picked (nil = "don't know").
type Answer struct {
	ID         int      `json:"id"`
	QuestionID int      `json:"question_id"`
	Sequence   int      `json:"sequence"`
	Answer     *Species `json:"answer,omitempty"`
	Species    *Species `json:"species,omitempty"`
	Correct    bool     `json:"correct"`
	Score      int      `json:"score"`
}
