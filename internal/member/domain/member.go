package domain

import (
	"time"

	"estate_chat_service/pkg/encrypt"
)

// MemberStatus account status
type MemberStatus int

const (
	// MemberStatusOffLine the member is logged out
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine the member has an active session
	MemberStatusOnLine
	// MemberStatusBan the member is blocked
	MemberStatusBan
	// MemberStatusDelete the member removed the account
	MemberStatusDelete
)

// Member one marketplace account. Nickname and ProfileImageURL are the
// fields snapshotted onto messages the member sends.
type Member struct {
	ID              int64
	UserID          string
	Email           string
	Password        string
	Nickname        string
	Introduction    string
	ProfileImageURL string
	Status          MemberStatus
}

// MemberSession one login session, cached in redis keyed by user id.
type MemberSession struct {
	Token        string    `json:"Token"`
	UserID       string    `json:"UserID"`
	CreatedAt    time.Time `json:"CreatedAt"`
	LastActivity time.Time `json:"LastActivity"`
	ExpiredAt    time.Time `json:"ExpiredAt"`
}

// IsPasswordMatch compare the stored hash against an input password
func (m *Member) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(m.Password, inputPwd)
}

// IsExpired check the session passed its expiry
func (s *MemberSession) IsExpired() bool {
	return time.Now().After(s.ExpiredAt)
}

// MemberQuery join conditions are used to query members
type MemberQuery struct {
	ID     *int64  `db:"id"`
	UserID *string `db:"user_id"`
	Email  *string `db:"email"`
}
