package domain

import "time"

// Action websocket request action
type Action string

const (
	// JoinRoom websocket action join_room
	JoinRoom Action = "join_room"
	// LeaveRoom websocket action leave_room
	LeaveRoom Action = "leave_room"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// ReadMessage websocket action read_message
	ReadMessage Action = "read_message"

	// GetUnread websocket action get_unread
	GetUnread Action = "get_unread"

	// NotifyMessage websocket action notify_message
	NotifyMessage Action = "notify_message"
)

// WSRequest websocket Request
type WSRequest struct {
	Action  string   `json:"action"`
	RoomID  string   `json:"room_id"`
	Content string   `json:"content"`
	Files   []string `json:"files,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Event   *MessageEvent          `json:"event,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// MessageEvent raw server-shaped record pushed over the realtime channel.
// The channel does not dedupe or persist these; the store does.
type MessageEvent struct {
	MessageID string      `json:"message_id"`
	RoomID    string      `json:"room_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Sender    Sender      `json:"sender"`
	Files     []string    `json:"files,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Message materializes the event into a storable Message.
func (e MessageEvent) Message() Message {
	t := e.Type
	if t == "" {
		t = MessageTypeText
	}
	return Message{
		ID:            e.MessageID,
		RoomID:        e.RoomID,
		Content:       e.Content,
		Type:          t,
		Sender:        e.Sender,
		AttachedFiles: e.Files,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.CreatedAt,
	}
}
