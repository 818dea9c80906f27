// The server binary exposes the resume-screening HTTP API. Small batches
// run inline; larger ones are queued for the worker binary when a broker is
// configured.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hlog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/api/router"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/extractor"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/mailer"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/queue"
	"resume-screener-go/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.Logger)
	hlog.SetLogger(hertzzerolog.From(logger.Logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer stores.Close()

	var ledger account.Ledger
	var statusStore jobstatus.Store
	if stores.Redis != nil {
		ledger = account.NewRedisLedger(stores.Redis, cfg.Tokens.InitialGrant)
		statusStore = jobstatus.NewRedisStore(stores.Redis, cfg.Processing.ResultTTL())
	} else {
		logger.Warn().Msg("redis not configured, using in-process job tracking and unlimited tokens")
		ledger = &account.UnlimitedLedger{Grant: cfg.Tokens.InitialGrant}
		statusStore = jobstatus.NewMemoryStore(cfg.Processing.ResultTTL())
	}

	analysisClient := analysis.NewClient(cfg.Analysis)
	docExtractor := extractor.NewDocumentExtractor()

	procOpts := []processor.Option{
		processor.WithConcurrency(cfg.Processing.MaxConcurrentAnalysis),
	}
	if stores.MinIO != nil {
		procOpts = append(procOpts, processor.WithObjectStorage(stores.MinIO))
	}
	if stores.MySQL != nil {
		procOpts = append(procOpts, processor.WithRecordStore(stores.MySQL))
	}
	proc := processor.New(docExtractor, analysisClient, procOpts...)

	syncStrategy := processor.NewSyncStrategy(proc)

	// Queued mode needs both the broker and Redis: the worker reports job
	// status through Redis, so without it the server would register jobs in
	// memory that the worker can never update.
	var queuedStrategy processor.Strategy
	switch {
	case cfg.RabbitMQ.URL != "" && stores.Redis == nil:
		logger.Warn().Msg("broker configured without redis, large batches will run synchronously")
	case cfg.RabbitMQ.URL != "":
		mq, mqErr := queue.NewRabbitMQ(&cfg.RabbitMQ)
		if mqErr != nil {
			logger.Warn().Err(mqErr).Msg("broker unavailable, large batches will run synchronously")
		} else {
			defer mq.Close()
			qs, qErr := processor.NewQueuedStrategy(mq, statusStore, processor.TopologyFromConfig(&cfg.RabbitMQ))
			if qErr != nil {
				logger.Warn().Err(qErr).Msg("broker topology setup failed, large batches will run synchronously")
			} else {
				queuedStrategy = qs
			}
		}
	default:
		logger.Info().Msg("no broker configured, all batches run synchronously")
	}

	generator := mailer.NewGenerator(analysisClient)
	sender := mailer.NewSender(cfg.SMTP)

	screeningHandler := handler.NewScreeningHandler(cfg, docExtractor, syncStrategy, queuedStrategy, ledger, statusStore)
	emailHandler := handler.NewEmailHandler(generator, sender)
	recordsHandler := handler.NewRecordsHandler(stores.MySQL)
	tokensHandler := handler.NewTokensHandler(ledger, cfg.Tokens)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	router.RegisterRoutes(h, cfg, screeningHandler, emailHandler, recordsHandler, tokensHandler)

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("http server starting")
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
