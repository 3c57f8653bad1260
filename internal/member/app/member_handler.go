package app

import (
	"estate_chat_service/internal/member/domain"
	"estate_chat_service/pkg/logger"
	"estate_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MemberHTTPHandler REST surface for account operations.
type MemberHTTPHandler struct {
	memberUC MemberUseCase
	log      *logger.LogInfo
}

// NewMemberHTTPHandler create MemberHTTPHandler
func NewMemberHTTPHandler(memberUC MemberUseCase, log *logger.LogInfo) *MemberHTTPHandler {
	return &MemberHTTPHandler{memberUC: memberUC, log: log}
}

// Register POST /members/register
func (h *MemberHTTPHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Nickname string `json:"nickname"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := h.memberUC.Register(c.Context(), req.Email, req.Password, req.Nickname); err != nil {
		h.log.Error("register failed", zap.String("email", req.Email), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

// Login POST /members/login. The token is returned in the body and also
// set as the auth cookie the websocket upgrade reads.
func (h *MemberHTTPHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	t, err := h.memberUC.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middlewares.CookieToken,
		Value:    t,
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"token": t})
}

// Logout POST /members/logout
func (h *MemberHTTPHandler) Logout(c *fiber.Ctx) error {
	t := c.Query(middlewares.QueryToken)
	if t == "" {
		t = c.Cookies(middlewares.CookieToken)
	}

	if err := h.memberUC.Logout(c.Context(), t); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	c.ClearCookie(middlewares.CookieToken)
	return c.JSON(fiber.Map{"success": true})
}

// Me GET /members/me
func (h *MemberHTTPHandler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	member, err := h.memberUC.FindMember(c.Context(), &domain.MemberQuery{UserID: &userID})
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"user_id":           member.UserID,
		"email":             member.Email,
		"nickname":          member.Nickname,
		"introduction":      member.Introduction,
		"profile_image_url": member.ProfileImageURL,
	})
}
