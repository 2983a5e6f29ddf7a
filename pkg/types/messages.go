package types

// Client -> Server
// join_game:
//   player_token: string
//   language_code: string (optional)
//
// start_game (host only):
//   player_token: string
//
// next_question (host only, classic mode; challenge mode auto-advances):
//   player_token: string
//
// submit_answer:
//   player_token: string
//   question_id: number
//   answer_id: number | null  // null = "don't know"

// Server -> Client
// update_players:
//   players: RosterEntry[]  // full replace, ordered by descending score
//
// player_joined:
//   player_name: string
//
// new_question:
//   question: { id, sequence, game: { token }, options?: Species[],
//               images/videos/sounds: MediaRef[] }
//   // absent options = free-text mode
//
// game_started: {}
//
// game_updated:
//   game: { token, mode, length, progress, ended, host, ... }
//
// answer_checked:
//   answer: { question_id, sequence, answer?, species, correct, score }
