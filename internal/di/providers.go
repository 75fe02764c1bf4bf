package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TradePulse/internal/domain/repository"
	"TradePulse/internal/handler/api"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/broker"
	"TradePulse/internal/service/history"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/internal/service/stream"
	"TradePulse/internal/usecase"
	"TradePulse/pkg/cache"
	pkgch "TradePulse/pkg/clickhouse"
	"TradePulse/pkg/config"
	xhttp "TradePulse/pkg/http"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
	"TradePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the snapshot cache. With Redis enabled the layered
// memory+Redis cache is used; otherwise memory only.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("tradepulse"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideStream creates the market data WebSocket transport.
func ProvideStream(cfg *config.Config, log *applogger.Logger) repository.MarketStream {
	return stream.New(
		cfg.Stream.URL,
		cfg.Stream.APIKey,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		log,
	)
}

// ProvideSnapshotSource creates the cached history client.
func ProvideSnapshotSource(cfg *config.Config, c cache.Service, log *applogger.Logger) repository.SnapshotSource {
	return history.New(cfg.History.BaseURL, cfg.History.Timeout, c, cfg.History.CacheTTL, log)
}

// ProvideBroker creates the order submission client.
func ProvideBroker(cfg *config.Config, log *applogger.Logger) repository.Broker {
	return broker.New(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.Timeout, log)
}

// ProvideLimiter creates the keyed token bucket limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideSubscriptions creates the lease manager over the stream transport.
func ProvideSubscriptions(s repository.MarketStream, m repository.Metrics, cfg *config.Config) *usecase.SubscriptionManager {
	return usecase.NewSubscriptionManager(s, m, cfg.Agents.EventBuffer)
}

// ProvideBook creates the reconciler registry.
func ProvideBook(
	cfg *config.Config,
	snap repository.SnapshotSource,
	subs *usecase.SubscriptionManager,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Book {
	return usecase.NewBook(usecase.ReconcilerConfig{
		StaleAfter:    cfg.Reconcile.StaleAfter,
		SnapshotCount: cfg.History.SnapshotCount,
		FallbackCount: cfg.Reconcile.FallbackCount,
	}, snap, subs, limiter, m, log)
}

// ProvideTradeStore creates the pending trade store.
func ProvideTradeStore() repository.TradeStore {
	return internalrepo.NewTradeStore()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideJournal picks the audit journal: Kafka topic when enabled, the
// structured log otherwise.
func ProvideJournal(cfg *config.Config, producer *pkgkafka.Producer, log *applogger.Logger) repository.Journal {
	if producer != nil {
		return internalrepo.NewKafkaJournal(producer, cfg.Kafka.Topic)
	}
	return internalrepo.NewLogJournal(log)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideArchive creates the ClickHouse event archive, or nil when disabled.
func ProvideArchive(chClient *pkgch.Client) (*internalrepo.ClickHouseJournal, error) {
	if chClient == nil {
		return nil, nil
	}
	archive := internalrepo.NewClickHouseJournal(chClient.DB(), "trade_events")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := chClient.InitSchema(ctx, archive.Schema()); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return archive, nil
}

// ProvideKafkaConsumer creates the audit-topic consumer, or nil when either
// Kafka or ClickHouse is disabled.
func ProvideKafkaConsumer(cfg *config.Config, chClient *pkgch.Client) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || chClient == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideArchiver creates the consumer handler writing events to ClickHouse.
func ProvideArchiver(cfg *config.Config, archive *internalrepo.ClickHouseJournal, m repository.Metrics) pkgkafka.MessageHandler {
	if archive == nil {
		return nil
	}
	return usecase.NewJournalArchiver(cfg.Kafka.Topic, archive, m)
}

// ProvideStrategyRegistry creates the built-in strategy registry.
func ProvideStrategyRegistry() *usecase.StrategyRegistry {
	return usecase.NewStrategyRegistry()
}

// ProvideOrchestrator creates the agent orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	subs *usecase.SubscriptionManager,
	snap repository.SnapshotSource,
	brk repository.Broker,
	trades repository.TradeStore,
	journal repository.Journal,
	registry *usecase.StrategyRegistry,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(usecase.OrchestratorConfig{
		SnapshotCount: cfg.History.SnapshotCount,
		Capital:       cfg.Agents.Capital,
	}, subs, snap, brk, trades, journal, registry, m, log)
}

// ProvideConfirmations creates the confirmation queue service and cross-wires
// it with the orchestrator.
func ProvideConfirmations(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	trades repository.TradeStore,
	brk repository.Broker,
	journal repository.Journal,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ConfirmationService {
	confirm := usecase.NewConfirmationService(trades, brk, journal, m, log, cfg.Agents.ConfirmPollInterval)
	confirm.SetExecutionFailureHandler(orch.MarkError)
	orch.SetConfirmationNotifier(confirm)
	return confirm
}

// ProvideCollector creates the stream consumer.
func ProvideCollector(
	s repository.MarketStream,
	book *usecase.Book,
	subs *usecase.SubscriptionManager,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Collector {
	return usecase.NewCollector(s, book, subs, m, log)
}

// ProvideHTTPHandler composes the API routes.
func ProvideHTTPHandler(
	log *applogger.Logger,
	book *usecase.Book,
	s repository.MarketStream,
	orch *usecase.Orchestrator,
	archive *internalrepo.ClickHouseJournal,
	confirm *usecase.ConfirmationService,
	chClient *pkgch.Client,
) xhttp.Handler {
	health := func() error {
		if chClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return chClient.Health(ctx)
		}
		return nil
	}
	return api.NewRouter(
		api.NewMarketHandler(log, book, s),
		api.NewAgentsHandler(log, orch, archive),
		api.NewTradesHandler(log, confirm),
		health,
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.Collector,
	orch *usecase.Orchestrator,
	confirm *usecase.ConfirmationService,
	journal repository.Journal,
	consumer *pkgkafka.Consumer,
	archiver pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, log, collector, orch, confirm, journal, consumer, archiver, chClient, handler)
}
