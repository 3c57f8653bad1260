package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannel redis channel carrying one user's deliveries
func UserChannel(userID string) string { return "chat:user:" + userID }

// RoomChannel redis channel carrying one room's deliveries
func RoomChannel(roomID string) string { return "chat:room:" + roomID }

// RedisPubSub fan-out of message events across service instances. Each
// websocket connection subscribes to its user channel; sends publish to
// every participant's channel plus the room channel.
type RedisPubSub struct {
	client *redis.Client
	log    *logger.LogInfo
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client, log *logger.LogInfo) *RedisPubSub {
	return &RedisPubSub{client: client, log: log}
}

// Publish serialize the event and publish it to the channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event domain.MessageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe listen on the channel until ctx is done, calling handler for
// every decodable event.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(event domain.MessageEvent)) error {
	sub := r.client.Subscribe(ctx, channel)
	go func() {
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var event domain.MessageEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					r.log.Error("pubsub payload decode failed", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(event)
			case <-ctx.Done():
				r.log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
