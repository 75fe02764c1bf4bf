//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Transports and repositories
		ProvideStream,
		ProvideSnapshotSource,
		ProvideBroker,
		ProvideTradeStore,
		ProvideJournal,
		ProvideArchive,
		ProvideArchiver,

		// Use cases
		ProvideLimiter,
		ProvideSubscriptions,
		ProvideBook,
		ProvideStrategyRegistry,
		ProvideOrchestrator,
		ProvideConfirmations,
		ProvideCollector,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
