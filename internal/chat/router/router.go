package router

import (
	"context"

	"estate_chat_service/internal/chat/app"
	memberapp "estate_chat_service/internal/member/app"
	"estate_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes wire the chat and member routes onto the fiber app.
// Auth routes stay public; everything else sits behind the JWT middleware.
func RegisterRoutes(
	r *fiber.App,
	chatWebsocket *app.ChatWebsocketHandler,
	chatHTTP *app.ChatHTTPHandler,
	memberHTTP *memberapp.MemberHTTPHandler,
) {
	r.Post("/members/register", memberHTTP.Register)
	r.Post("/members/login", memberHTTP.Login)

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	r.Get("/chats", chatHTTP.ListRooms)
	r.Get("/chats/:roomID", chatHTTP.RoomMessages)
	r.Post("/chats/:roomID", chatHTTP.SendMessage)
	r.Post("/chats/:roomID/read", chatHTTP.MarkRead)
	r.Post("/chats/:roomID/attachments", chatHTTP.UploadAttachment)

	r.Post("/members/logout", memberHTTP.Logout)
	r.Get("/members/me", memberHTTP.Me)
}
