package app

import (
	"context"
	"errors"
	"time"

	chatdomain "estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/member/domain"
	"estate_chat_service/internal/member/repository"
	"estate_chat_service/pkg/config"
	"estate_chat_service/pkg/database"
	"estate_chat_service/pkg/encrypt"
	"estate_chat_service/pkg/logger"
	token "estate_chat_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemberUseCase account operations plus the sender snapshot lookup the
// chat use case depends on.
type MemberUseCase interface {
	Register(ctx context.Context, email, password, nickname string) error
	FindMember(ctx context.Context, param *domain.MemberQuery) (*domain.Member, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	SenderSnapshot(ctx context.Context, userID string) (chatdomain.Sender, error)
}

type memberUseCase struct {
	memberRepo repository.MemberRepository
	sessionTTL time.Duration
	redisRepo  database.RedisRepository[domain.MemberSession]
	log        *logger.LogInfo
}

// NewMemberUseCase create a MemberUseCase
func NewMemberUseCase(
	memberRepo repository.MemberRepository,
	sessionTTL time.Duration,
	redisRepo database.RedisRepository[domain.MemberSession],
	log *logger.LogInfo,
) MemberUseCase {
	return &memberUseCase{
		memberRepo: memberRepo,
		sessionTTL: sessionTTL,
		redisRepo:  redisRepo,
		log:        log,
	}
}

// Register create an account after checking the email is unused.
func (m *memberUseCase) Register(ctx context.Context, email, password, nickname string) error {
	if _, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{Email: &email}); err == nil {
		return errors.New("email already exists")
	}

	if err := encrypt.ValidatePasswordStrength(password); err != nil {
		return err
	}
	pw, err := encrypt.HashPassword(password)
	if err != nil {
		return err
	}

	member := domain.Member{
		UserID:   uuid.NewString(),
		Email:    email,
		Password: pw,
		Nickname: nickname,
	}
	return m.memberRepo.CreateUser(ctx, &member)
}

// FindMember look a member up by any MemberQuery condition
func (m *memberUseCase) FindMember(ctx context.Context, param *domain.MemberQuery) (*domain.Member, error) {
	return m.memberRepo.FindByMember(ctx, param)
}

// Login verify credentials, issue a JWT and cache the session.
func (m *memberUseCase) Login(ctx context.Context, email, password string) (string, error) {
	member, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{Email: &email})
	if err != nil {
		return "", errors.New("user not found")
	}
	if err = member.IsPasswordMatch(password); err != nil {
		return "", errors.New("password mismatch")
	}

	member.Status = domain.MemberStatusOnLine

	t, err := token.GenerateJWT(member.UserID, string(token.RoleUser), config.EnvConfig.ChatService)
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := domain.MemberSession{
		Token:        t,
		UserID:       member.UserID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiredAt:    now.Add(m.sessionTTL),
	}
	if err := m.redisRepo.Set(ctx, member.UserID, session, m.sessionTTL); err != nil {
		m.log.Warn("session cache failed", zap.String("userID", member.UserID), zap.Error(err))
	}

	if err := m.memberRepo.UpdateMemberStatus(ctx, member); err != nil {
		return "", err
	}
	return t, nil
}

// Logout drop the cached session and mark the member offline.
func (m *memberUseCase) Logout(ctx context.Context, t string) error {
	tokenInfo, err := token.ParseJWT(t)
	if err != nil {
		return err
	}

	if err := m.redisRepo.Del(ctx, tokenInfo.UserID); err != nil {
		m.log.Warn("session delete failed", zap.String("userID", tokenInfo.UserID), zap.Error(err))
	}

	return m.memberRepo.UpdateMemberStatus(ctx, &domain.Member{
		UserID: tokenInfo.UserID,
		Status: domain.MemberStatusOffLine,
	})
}

// SenderSnapshot freeze the member's current profile into the form
// embedded on outgoing messages.
func (m *memberUseCase) SenderSnapshot(ctx context.Context, userID string) (chatdomain.Sender, error) {
	member, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{UserID: &userID})
	if err != nil {
		return chatdomain.Sender{}, err
	}
	return chatdomain.Sender{
		UserID:          member.UserID,
		Nickname:        member.Nickname,
		Introduction:    member.Introduction,
		ProfileImageURL: member.ProfileImageURL,
	}, nil
}
