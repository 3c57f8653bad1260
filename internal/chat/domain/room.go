package domain

import "time"

// Participant identity snapshot embedded in a Room. Immutable once stored.
type Participant struct {
	UserID          string `bson:"user_id" json:"user_id"`
	Nickname        string `bson:"nickname" json:"nickname"`
	Introduction    string `bson:"introduction,omitempty" json:"introduction,omitempty"`
	ProfileImageURL string `bson:"profile_image_url,omitempty" json:"profile_image_url,omitempty"`
}

// Room a conversation between a fixed set of participants.
// UnreadCount is local derived state and never goes negative;
// LastMessageID is a lookup reference, not ownership.
type Room struct {
	ID                  string        `bson:"_id" json:"room_id"`
	Participants        []Participant `bson:"participants" json:"participants"`
	LastMessageID       string        `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	UnreadCount         int           `bson:"unread_count" json:"unread_count"`
	LastPushMessage     string        `bson:"last_push_message,omitempty" json:"last_push_message,omitempty"`
	LastPushMessageDate *time.Time    `bson:"last_push_message_date,omitempty" json:"last_push_message_date,omitempty"`
	CreatedAt           time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at" json:"updated_at"`
}

// HasParticipant check the room contains the given user
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
