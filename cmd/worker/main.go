package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/taxo/internal/queue"
	"github.com/OFFIS-RIT/taxo/internal/storage"
	"github.com/OFFIS-RIT/taxo/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/taxo/pkg/ai"
	oai "github.com/OFFIS-RIT/taxo/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/taxo/pkg/ai/openai"
	"github.com/OFFIS-RIT/taxo/pkg/cascade"
	"github.com/OFFIS-RIT/taxo/pkg/engine"
	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/logger/console"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"
	pgxstore "github.com/OFFIS-RIT/taxo/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := lifecycle.FromEnv()
	if err != nil {
		logger.Fatal("Invalid lifecycle configuration", "err", err)
	}

	// Init s3 client for decision archiving
	var audit cascade.AuditSink
	if archive := storage.NewAuditArchive(storage.NewS3Client(ctx)); archive != nil {
		audit = archive
	}

	// GraphAiClient
	adapter := util.GetEnv("AI_ADAPTER")
	var aiClient ai.GraphAIClient

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ArbiterModel:   util.GetEnv("AI_ARBITER_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			TimeoutMin:            int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 1)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		aiClient = gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ArbiterModel:   util.GetEnv("AI_ARBITER_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			TimeoutMin:              int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
			MaxConcurrentEmbeddings: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
	}

	// Definition texts repeat across epochs; cache their embeddings.
	cached := ai.NewEmbeddingCache(aiClient, util.GetEnv("AI_EMBED_MODEL"),
		int(util.GetEnvNumeric("AI_EMBED_CACHE_SIZE", 4096)))

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	pgConn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	graphStore := pgxstore.New(pgConn, store.WindowFromConfig(cfg))

	// Seed the registry on first boot. SEED_TYPES_FILE points at a JSON array
	// of seed types; once the registry has a version the file is ignored.
	if seedFile := util.GetEnvString("SEED_TYPES_FILE", ""); seedFile != "" {
		snap, err := graphStore.Snapshot(ctx)
		if err != nil {
			logger.Fatal("Unable to read registry version", "err", err)
		}
		if snap.Version() == 0 {
			data, err := os.ReadFile(seedFile)
			if err != nil {
				logger.Fatal("Unable to read seed types file", "file", seedFile, "err", err)
			}
			var seeds []ontology.Type
			if err := json.Unmarshal(data, &seeds); err != nil {
				logger.Fatal("Invalid seed types file", "file", seedFile, "err", err)
			}
			if err := graphStore.SeedTypes(ctx, seeds); err != nil {
				logger.Fatal("Failed to seed type registry", "err", err)
			}
			logger.Info("Seeded type registry", "types", len(seeds))
		} else {
			logger.Debug("Registry already seeded", "version", snap.Version())
		}
	}

	eng := engine.New(cfg, graphStore, cached, audit)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Single consumer channel with prefetch=1: one message at a time across
	// all queues, so epochs never overlap ingestion.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}
			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = queue.ProcessIngestMessage(ctx, graphStore, eng, string(qm.msg.Body))
				case queue.ScanQueue:
					processingErr = queue.ProcessScanMessage(ctx, eng, string(qm.msg.Body))
				}

				// Retry or dead-letter on failure, otherwise ack
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := cached.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration_ms", metrics.DurationMs,
				)
				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
				cached.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
