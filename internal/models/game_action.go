package models

import "github.com/google/uuid"

// GameAction is a command envelope received from a client (HTTP body or WebSocket frame).
type GameAction struct {
	ActionType string                 `json:"action_type"`
	Payload    map[string]interface{} `json:"payload"`
}

// HistoryEntry is one row of a game's action log.
type HistoryEntry struct {
	GameID      uuid.UUID              `json:"game_id"`
	ActionIndex int                    `json:"action_index"`
	ActorID     uuid.UUID              `json:"actor_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}
