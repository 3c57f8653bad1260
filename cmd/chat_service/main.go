package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"estate_chat_service/internal/chat/app"
	"estate_chat_service/internal/chat/repository"
	"estate_chat_service/internal/chat/router"
	"estate_chat_service/internal/chat/store"
	memberapp "estate_chat_service/internal/member/app"
	memberdomain "estate_chat_service/internal/member/domain"
	memberrepo "estate_chat_service/internal/member/repository"
	"estate_chat_service/pkg/config"
	"estate_chat_service/pkg/database"
	"estate_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	ctx := context.Background()

	// Mongo holds messages and rooms
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	chatStore := store.NewMongoStore(mongo.Database)
	if err := chatStore.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal("mongo schema setup failed", zap.Error(err))
	}

	// Redis carries pub/sub fan-out and the session cache
	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// Postgres holds accounts
	pgURI := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	pgPool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.Postgres.RetryCount,
		RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgreSQL database after retries", zap.Error(err))
	}
	defer pgPool.Close()

	// MinIO stores attachments
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.BucketName,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minIO after retries", zap.Error(err))
	}

	// Kafka receives the message archive stream
	kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to create kafka writer after retries", zap.Error(err))
	}
	defer kafkaWriter.Close()

	// RabbitMQ queues push notification jobs
	rabbitConn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    cfg.Rabbit.URL,
		RetryCount:    cfg.Rabbit.RetryCount,
		RetryInterval: time.Duration(cfg.Rabbit.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect rabbitMQ after retries", zap.Error(err))
	}
	defer rabbitConn.Close()

	rabbitCh, err := database.GetRabbitMQChannelWithRetry(rabbitConn, cfg.Rabbit.RetryCount, time.Duration(cfg.Rabbit.RetryInterval))
	if err != nil {
		logger.Log.Fatal("Unable to get rabbitMQ channel after retries", zap.Error(err))
	}
	defer rabbitCh.Close()

	pushQueue, err := repository.NewPushQueue(database.NewRabbitRepository(rabbitCh))
	if err != nil {
		logger.Log.Fatal("push queue declare failed", zap.Error(err))
	}

	pubsub := repository.NewRedisPubSub(redisClient, logger.Log)
	archive := repository.NewArchiveRepo(kafkaWriter, logger.Log)
	attachments := repository.NewAttachmentRepo(minioClient)

	memberRepo := memberrepo.NewMemberRepository(pgPool)
	sessionRepo := database.NewRedisRepository[memberdomain.MemberSession](redisClient)
	memberUC := memberapp.NewMemberUseCase(memberRepo, cfg.SessionTTL, sessionRepo, logger.Log)

	chatUC := app.NewChatUseCase(chatStore, pubsub, archive, pushQueue, attachments, memberUC, logger.Log)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(chatUC, pubsub, logger.Log),
		app.NewChatHTTPHandler(chatUC, logger.Log),
		memberapp.NewMemberHTTPHandler(memberUC, logger.Log),
	)

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
