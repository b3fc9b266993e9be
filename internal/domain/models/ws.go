package models

// WebSocket message types
const (
	WSMessageSubscribed = "subscribed"
	WSMessageEvent      = "event"
	WSMessageError      = "error"
)

type WebSocketMessage struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic,omitempty"`
	Topics []string        `json:"topics,omitempty"`
	Data   *BroadcastEvent `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}
