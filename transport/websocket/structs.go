package websocket

import "encoding/json"

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MovePayload struct {
	RoomID string `json:"roomId"`
	Index  int    `json:"index"`
}

type ChatPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
	// Symbol is sent by the client but never trusted; the sender's
	// symbol is resolved server-side from its room membership.
	Symbol string `json:"symbol,omitempty"`
}

type RematchPayload struct {
	RoomID string `json:"roomId"`
}

type MatchFoundPayload struct {
	RoomID string `json:"roomId"`
	Symbol string `json:"symbol"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
}

type ChatMessagePayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}
