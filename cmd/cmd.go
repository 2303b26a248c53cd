package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"stratengine/api"
	"stratengine/internal/cache"
	"stratengine/internal/repository"
	l1_service "stratengine/internal/service/l1"
	l3_service "stratengine/internal/service/l3"
	"stratengine/internal/universe"
	"stratengine/pkg/yahoofinance"

	_ "github.com/lib/pq"
)

// Dependencies is the fully wired object graph. Db is nil when no
// DB_DSN is configured; persistence-backed features degrade gracefully.
type Dependencies struct {
	ApiHandler *api.ApiHandler
	Engine     l3_service.EngineService
	Db         *sql.DB
}

func CloseDependencies(deps *Dependencies) {
	if deps.Db == nil {
		return
	}
	if err := deps.Db.Close(); err != nil {
		log.Fatalf("failed to close db: %v", err)
	}
}

func InitializeDependencies() (*Dependencies, error) {
	marketData := newMarketData()

	var symbols []string
	if path := os.Getenv("UNIVERSE_CSV"); path != "" {
		assets, err := universe.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load universe: %w", err)
		}
		symbols = universe.Symbols(assets)
	}

	var db *sql.DB
	var savedStrategyRepository repository.SavedStrategyRepository
	var evaluationRunRepository repository.EvaluationRunRepository
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		dbConn, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		db = dbConn
		savedStrategyRepository = repository.NewSavedStrategyRepository(dbConn)
		evaluationRunRepository = repository.NewEvaluationRunRepository(dbConn)
	}

	engine := l3_service.NewEngineService(l3_service.EngineServiceOpts{
		Indicators:      l1_service.NewIndicatorService(marketData, nil),
		MarketData:      marketData,
		Publisher:       repository.NewLoggingEventPublisher(),
		SavedStrategies: savedStrategyRepository,
		Runs:            evaluationRunRepository,
		Requests:        cache.NewRequestCache(cache.DefaultCapacity, cache.DefaultTTL),
		Universe:        symbols,
		CashSymbol:      os.Getenv("CASH_SYMBOL"),
	})

	apiHandler := &api.ApiHandler{
		Engine:                  engine,
		SavedStrategyRepository: savedStrategyRepository,
		EvaluationRunRepository: evaluationRunRepository,
		JwtSecret:               os.Getenv("JWT_SECRET"),
	}

	return &Dependencies{
		ApiHandler: apiHandler,
		Engine:     engine,
		Db:         db,
	}, nil
}

// newMarketData picks the price backend: Alpaca when keys are present,
// otherwise the unauthenticated Yahoo Finance client.
func newMarketData() repository.MarketDataPort {
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_API_SECRET")
	if apiKey != "" && apiSecret != "" {
		return repository.NewAlpacaMarketData(apiKey, apiSecret, os.Getenv("ALPACA_ENDPOINT"))
	}
	return repository.NewYahooMarketData(yahoofinance.NewClient())
}
