// The worker binary consumes queued screening batches from the broker, runs
// them through the pipeline and records progress and results in Redis where
// the API server's status endpoint reads them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/extractor"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/queue"
	"resume-screener-go/internal/storage"
)

const defaultPrefetch = 1

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

	if cfg.RabbitMQ.URL == "" {
		logger.Fatal().Msg("worker requires a broker; set rabbitmq.url")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer stores.Close()
	if stores.Redis == nil {
		logger.Fatal().Msg("worker requires redis for job status; set redis.address")
	}

	statusStore := jobstatus.NewRedisStore(stores.Redis, cfg.Processing.ResultTTL())
	ledger := account.NewRedisLedger(stores.Redis, cfg.Tokens.InitialGrant)

	procOpts := []processor.Option{
		processor.WithConcurrency(cfg.Processing.MaxConcurrentAnalysis),
	}
	if stores.MinIO != nil {
		procOpts = append(procOpts, processor.WithObjectStorage(stores.MinIO))
	}
	if stores.MySQL != nil {
		procOpts = append(procOpts, processor.WithRecordStore(stores.MySQL))
	}
	proc := processor.New(extractor.NewDocumentExtractor(), analysis.NewClient(cfg.Analysis), procOpts...)

	mq, err := queue.NewRabbitMQ(&cfg.RabbitMQ)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer mq.Close()

	topology := processor.TopologyFromConfig(&cfg.RabbitMQ)
	if err := mq.EnsureExchange(topology.Exchange, "direct", true); err != nil {
		logger.Fatal().Err(err).Msg("failed to declare exchange")
	}
	if err := mq.EnsureQueue(topology.Queue, true); err != nil {
		logger.Fatal().Err(err).Msg("failed to declare queue")
	}
	if err := mq.BindQueue(topology.Queue, topology.Exchange, topology.RoutingKey); err != nil {
		logger.Fatal().Err(err).Msg("failed to bind queue")
	}

	worker := processor.NewWorker(proc, statusStore, ledger, cfg.Tokens.PerResume)

	prefetch := cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	stop, err := mq.StartConsumer(topology.Queue, prefetch, worker.HandleMessage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start consumer")
	}
	logger.Info().Str("queue", topology.Queue).Int("prefetch", prefetch).Msg("worker consuming")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("worker shutting down")
	close(stop)
}
