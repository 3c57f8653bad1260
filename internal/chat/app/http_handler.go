package app

import (
	"errors"

	"estate_chat_service/pkg/logger"
	"estate_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHTTPHandler REST surface mirrored by the client's sync fetcher:
// room listing, room history with a delta cursor, send, read.
type ChatHTTPHandler struct {
	chatUC *ChatUseCase
	log    *logger.LogInfo
}

// NewChatHTTPHandler create ChatHTTPHandler
func NewChatHTTPHandler(chatUC *ChatUseCase, log *logger.LogInfo) *ChatHTTPHandler {
	return &ChatHTTPHandler{chatUC: chatUC, log: log}
}

// ListRooms GET /chats
func (h *ChatHTTPHandler) ListRooms(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	rooms, err := h.chatUC.ListRooms(c.Context(), userID)
	if err != nil {
		return h.fail(c, userID, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

// RoomMessages GET /chats/:roomID?next={RFC3339}
func (h *ChatHTTPHandler) RoomMessages(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	msgs, err := h.chatUC.RoomMessages(c.Context(), userID, c.Params("roomID"), c.Query("next"))
	if err != nil {
		return h.fail(c, userID, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// SendMessage POST /chats/:roomID
func (h *ChatHTTPHandler) SendMessage(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	var req struct {
		Content string   `json:"content"`
		Files   []string `json:"files"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	msg, err := h.chatUC.SendMessage(c.Context(), userID, c.Params("roomID"), req.Content, req.Files)
	if err != nil {
		return h.fail(c, userID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// MarkRead POST /chats/:roomID/read
func (h *ChatHTTPHandler) MarkRead(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	if err := h.chatUC.MarkRead(c.Context(), userID, c.Params("roomID")); err != nil {
		return h.fail(c, userID, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UploadAttachment POST /chats/:roomID/attachments
func (h *ChatHTTPHandler) UploadAttachment(c *fiber.Ctx) error {
	userID, _ := c.Locals(middlewares.TokenUserID).(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file required"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, userID, err)
	}
	defer file.Close()

	objectName, err := h.chatUC.StoreAttachment(
		c.Context(), userID, c.Params("roomID"),
		fileHeader.Filename, file, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		return h.fail(c, userID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"object": objectName})
}

func (h *ChatHTTPHandler) fail(c *fiber.Ctx, userID string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRoomNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrNotParticipant):
		status = fiber.StatusForbidden
	}
	if status == fiber.StatusInternalServerError {
		h.log.Error("chat http error", zap.String("userID", userID), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
