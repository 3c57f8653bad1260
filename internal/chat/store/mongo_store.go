package store

import (
	"context"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// schemaVersion bumped on any change to the stored document shapes.
// EnsureSchema records it in schema_info so a future migration step can
// tell what it is upgrading from.
const schemaVersion = 1

// MongoStore durable MessageStore on MongoDB. Messages are one document
// per message keyed by message id; the unique _id index is what enforces
// at-most-once.
type MongoStore struct {
	messages *mongo.Collection
	rooms    *mongo.Collection
	schema   *mongo.Collection
}

// NewMongoStore create a MongoStore on the given database
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		messages: db.Collection("messages"),
		rooms:    db.Collection("rooms"),
		schema:   db.Collection("schema_info"),
	}
}

// EnsureSchema create the secondary indexes and record the schema version.
func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return wrapErr("ensure message index", err)
	}

	_, err = s.schema.UpdateOne(ctx,
		bson.M{"_id": "chat"},
		bson.M{"$max": bson.M{"version": schemaVersion}},
		options.Update().SetUpsert(true),
	)
	return wrapErr("record schema version", err)
}

// SaveMessage see MessageStore.
func (s *MongoStore) SaveMessage(ctx context.Context, msg domain.Message) (bool, error) {
	_, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// already stored, the original record wins
			return false, nil
		}
		return false, wrapErr("save message", err)
	}

	if err := s.touchRoom(ctx, msg); err != nil {
		logger.Log.Warn("room touch after save failed", zap.String("roomID", msg.RoomID), zap.Error(err))
	}
	return true, nil
}

// SaveMessages see MessageStore. Only ids not yet stored are inserted;
// on a partial failure the just-inserted ids are removed again so the
// caller observes all-or-none.
func (s *MongoStore) SaveMessages(ctx context.Context, msgs []domain.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
	}

	cur, err := s.messages.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, wrapErr("query existing ids", err)
	}
	existing := make(map[string]bool)
	var idDocs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &idDocs); err != nil {
		return 0, wrapErr("decode existing ids", err)
	}
	for _, doc := range idDocs {
		existing[doc.ID] = true
	}

	var fresh []interface{}
	var freshIDs []string
	var newest domain.Message
	for _, msg := range msgs {
		if existing[msg.ID] {
			continue
		}
		fresh = append(fresh, msg)
		freshIDs = append(freshIDs, msg.ID)
		if msg.CreatedAt.After(newest.CreatedAt) {
			newest = msg
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if _, err := s.messages.InsertMany(ctx, fresh, options.InsertMany().SetOrdered(false)); err != nil {
		// roll the batch back so a half-applied sync window is never visible
		if _, delErr := s.messages.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": freshIDs}}); delErr != nil {
			logger.Log.Error("batch rollback failed", zap.Error(delErr))
		}
		return 0, wrapErr("save messages", err)
	}

	if err := s.touchRoom(ctx, newest); err != nil {
		logger.Log.Warn("room touch after batch save failed", zap.String("roomID", newest.RoomID), zap.Error(err))
	}
	return len(fresh), nil
}

// touchRoom ensure the room exists and advance its last message reference
// when msg is newer than the room's current one.
func (s *MongoStore) touchRoom(ctx context.Context, msg domain.Message) error {
	_, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": msg.RoomID},
		bson.M{"$setOnInsert": bson.M{
			"created_at":   msg.CreatedAt,
			"unread_count": 0,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}

	_, err = s.rooms.UpdateOne(ctx,
		bson.M{
			"_id": msg.RoomID,
			"$or": bson.A{
				bson.M{"updated_at": bson.M{"$lt": msg.CreatedAt}},
				bson.M{"updated_at": bson.M{"$exists": false}},
			},
		},
		bson.M{"$set": bson.M{
			"last_message_id": msg.ID,
			"updated_at":      msg.CreatedAt,
		}},
	)
	return err
}

// FetchMessages see MessageStore.
func (s *MongoStore) FetchMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	return s.FetchMessagesSince(ctx, roomID, nil)
}

// FetchMessagesSince see ServerStore.
func (s *MongoStore) FetchMessagesSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	filter := bson.M{"room_id": roomID}
	if since != nil {
		filter["created_at"] = bson.M{"$gt": *since}
	}

	cur, err := s.messages.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, wrapErr("fetch messages", err)
	}

	msgs := make([]domain.Message, 0)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, wrapErr("decode messages", err)
	}
	return msgs, nil
}

// FetchMessage see ServerStore.
func (s *MongoStore) FetchMessage(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("fetch message", err)
	}
	return &msg, nil
}

// GetLastMessageDate see MessageStore.
func (s *MongoStore) GetLastMessageDate(ctx context.Context, roomID string) (*time.Time, error) {
	var msg domain.Message
	err := s.messages.FindOne(ctx, bson.M{"room_id": roomID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get last message date", err)
	}
	last := msg.CreatedAt
	return &last, nil
}

// MarkRoomRead see MessageStore.
func (s *MongoStore) MarkRoomRead(ctx context.Context, roomID string) error {
	_, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$set":         bson.M{"unread_count": 0},
			"$unset":       bson.M{"last_push_message": "", "last_push_message_date": ""},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	return wrapErr("mark room read", err)
}

// IncrementUnread see MessageStore.
func (s *MongoStore) IncrementUnread(ctx context.Context, roomID, preview string, at time.Time) error {
	_, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{
			"$inc": bson.M{"unread_count": 1},
			"$set": bson.M{
				"last_push_message":      preview,
				"last_push_message_date": at,
			},
			"$max":         bson.M{"updated_at": at},
			"$setOnInsert": bson.M{"created_at": at},
		},
		options.Update().SetUpsert(true),
	)
	return wrapErr("increment unread", err)
}

// FetchRoom see MessageStore.
func (s *MongoStore) FetchRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("fetch room", err)
	}
	return &room, nil
}

// FetchRooms see MessageStore.
func (s *MongoStore) FetchRooms(ctx context.Context) ([]domain.Room, error) {
	return s.findRooms(ctx, bson.M{})
}

// FetchRoomsByUser see ServerStore.
func (s *MongoStore) FetchRoomsByUser(ctx context.Context, userID string) ([]domain.Room, error) {
	return s.findRooms(ctx, bson.M{"participants.user_id": userID})
}

func (s *MongoStore) findRooms(ctx context.Context, filter bson.M) ([]domain.Room, error) {
	cur, err := s.rooms.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, wrapErr("fetch rooms", err)
	}

	rooms := make([]domain.Room, 0)
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, wrapErr("decode rooms", err)
	}
	return rooms, nil
}

// UpsertRoom see MessageStore.
func (s *MongoStore) UpsertRoom(ctx context.Context, room domain.Room) error {
	_, err := s.rooms.ReplaceOne(ctx, bson.M{"_id": room.ID}, room,
		options.Replace().SetUpsert(true))
	return wrapErr("upsert room", err)
}
