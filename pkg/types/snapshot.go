package types

// Snapshot:
//   version: number   // bumps on every applied event
//   state:
//     game_token: string
//     phase: "idle" | "connecting" | "lobby" | "question_active" |
//            "awaiting_resolution" | "results" | "ended"
//     current_sequence: number  // 1-based, never decreases
//     players: RosterEntry[]    // replaced wholesale on update_players
//     question: Question | null
//     answer: Answer | null     // the local player's resolved answer
//     submitted: boolean        // one submission per sequence
