package domain

import "time"

// MessageType definition message content kind
type MessageType string

const (
	// MessageTypeText plain text message
	MessageTypeText MessageType = "text"
	// MessageTypeImage message whose payload is its attached files
	MessageTypeImage MessageType = "image"
	// MessageTypeSystem server-generated notice
	MessageTypeSystem MessageType = "system"
)

// Sender is a denormalized snapshot of the sending user, frozen at send
// time. It is never refreshed from the live profile.
type Sender struct {
	UserID          string `bson:"user_id" json:"user_id"`
	Nickname        string `bson:"nickname" json:"nickname"`
	Introduction    string `bson:"introduction,omitempty" json:"introduction,omitempty"`
	ProfileImageURL string `bson:"profile_image_url,omitempty" json:"profile_image_url,omitempty"`
}

// Message one chat message. ID is server-assigned and globally unique;
// a message is immutable after creation except for the local IsRead flag.
type Message struct {
	ID            string      `bson:"_id" json:"message_id"`
	RoomID        string      `bson:"room_id" json:"room_id"`
	Content       string      `bson:"content" json:"content"` // may be empty when files are attached
	Type          MessageType `bson:"type" json:"type"`
	Sender        Sender      `bson:"sender" json:"sender"`
	AttachedFiles []string    `bson:"attached_files,omitempty" json:"attached_files,omitempty"`
	CreatedAt     time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updated_at"`
	IsRead        bool        `bson:"is_read" json:"is_read"` // local-only, not server authoritative
}
