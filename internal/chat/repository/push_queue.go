package repository

import (
	"encoding/json"
	"time"

	"estate_chat_service/pkg/database"

	"github.com/streadway/amqp"
)

// PushQueueName the work queue drained by the push notification worker
const PushQueueName = "chat.push"

// PushJob one pending push notification for an offline participant.
type PushJob struct {
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	Preview   string    `json:"preview"`
	SentAt    time.Time `json:"sent_at"`
}

// PushQueue enqueues push jobs onto the broker.
type PushQueue struct {
	rabbit database.RabbitRepo
}

// NewPushQueue declare the queue and create a PushQueue
func NewPushQueue(rabbit database.RabbitRepo) (*PushQueue, error) {
	_, err := rabbit.GetRabbit().QueueDeclare(
		PushQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &PushQueue{rabbit: rabbit}, nil
}

// Enqueue publish one job as a persistent message.
func (q *PushQueue) Enqueue(job PushJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rabbit.Publish("", PushQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         data,
	})
}
