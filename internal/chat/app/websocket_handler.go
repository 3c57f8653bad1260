package app

import (
	"context"
	"encoding/json"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/repository"
	"estate_chat_service/pkg"
	"estate_chat_service/pkg/logger"
	"estate_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var supportedActions = []string{
	string(domain.JoinRoom),
	string(domain.LeaveRoom),
	string(domain.SendMessage),
	string(domain.ReadMessage),
	string(domain.GetUnread),
}

// EventSubscriber per-connection pub/sub subscription surface.
type EventSubscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(event domain.MessageEvent)) error
}

// ChatWebsocketHandler drives one websocket connection: decodes client
// actions, delegates to the use case, and relays pub/sub deliveries.
type ChatWebsocketHandler struct {
	chatUC *ChatUseCase
	pubsub EventSubscriber
	log    *logger.LogInfo
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(chatUC *ChatUseCase, pubsub EventSubscriber, log *logger.LogInfo) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		chatUC: chatUC,
		pubsub: pubsub,
		log:    log,
	}
}

// HandleConnection entry point for one websocket connection. Lives until
// the client disconnects or the read fails.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	h.log.Info("websocket connected", zap.String("userID", userID))

	ticker := time.NewTicker(10 * time.Minute)
	connCtx, cancel := context.WithCancel(context.Background())

	// one cancellable subscription per joined room
	roomCancels := make(map[string]context.CancelFunc)

	defer func() {
		ticker.Stop()
		for _, c := range roomCancels {
			c()
		}
		cancel()
		conn.Close()
		h.log.Info("websocket closed", zap.String("userID", userID))
	}()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// deliveries addressed to this user, regardless of joined rooms
	h.pubsub.Subscribe(connCtx, repository.UserChannel(userID), func(event domain.MessageEvent) {
		h.sendEvent(conn, event)
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
					h.log.Errorf("ping error:", err)
					return
				}
			case <-connCtx.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				h.log.Infof("connection closed:", err)
			} else {
				h.log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(conn, "", "unsupported message type")
			continue
		}
		h.textMessageAction(ctx, conn, userID, message, roomCancels)
	}
}

func (h *ChatWebsocketHandler) textMessageAction(
	ctx context.Context,
	conn *websocket.Conn,
	userID string,
	msg []byte,
	roomCancels map[string]context.CancelFunc,
) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(conn, "", "invalid request")
		return
	}
	if !pkg.Contains(supportedActions, req.Action) {
		h.sendError(conn, req.Action, "unknown action")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	case string(domain.JoinRoom):
		if _, ok := roomCancels[req.RoomID]; ok {
			// rejoin after reconnect is a no-op
			resp.Success = true
			break
		}
		roomCtx, cancelRoom := context.WithCancel(context.Background())
		h.pubsub.Subscribe(roomCtx, repository.RoomChannel(req.RoomID), func(event domain.MessageEvent) {
			h.sendEvent(conn, event)
		})
		roomCancels[req.RoomID] = cancelRoom
		resp.Success = true
		resp.Payload["room_id"] = req.RoomID

	case string(domain.LeaveRoom):
		if cancelRoom, ok := roomCancels[req.RoomID]; ok {
			cancelRoom()
			delete(roomCancels, req.RoomID)
		}
		resp.Success = true
		resp.Payload["room_id"] = req.RoomID

	case string(domain.SendMessage):
		sent, err := h.chatUC.SendMessage(ctx, userID, req.RoomID, req.Content, req.Files)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["message_id"] = sent.ID
		}

	case string(domain.ReadMessage):
		if err := h.chatUC.MarkRead(ctx, userID, req.RoomID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	case string(domain.GetUnread):
		counts, err := h.chatUC.UnreadCounts(ctx, userID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			for roomID, count := range counts {
				resp.Payload[roomID] = count
			}
		}

	}

	if resp.Error != "" {
		h.log.Error("websocket action failed",
			zap.String("userID", userID), zap.String("action", req.Action), zap.String("err", resp.Error))
	}
	h.sendResponse(conn, resp)
}

func (h *ChatWebsocketHandler) sendEvent(conn *websocket.Conn, event domain.MessageEvent) {
	h.sendResponse(conn, domain.WSResponse{
		Action:  string(domain.NotifyMessage),
		Success: true,
		Event:   &event,
	})
}

func (h *ChatWebsocketHandler) sendResponse(conn *websocket.Conn, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		h.log.Errorf("write message error:", err)
	}
}

func (h *ChatWebsocketHandler) sendError(conn *websocket.Conn, action, errorMsg string) {
	h.sendResponse(conn, domain.WSResponse{
		Action: action,
		Error:  errorMsg,
	})
}
