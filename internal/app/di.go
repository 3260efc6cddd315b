// Package app provides the dependency injection container that assembles the
// application. Components are created lazily on first access and reused after.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/consentbroker/internal/config"
	consentHTTP "github.com/allisson/consentbroker/internal/consent/http"
	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
	delegationHTTP "github.com/allisson/consentbroker/internal/delegation/http"
	delegationService "github.com/allisson/consentbroker/internal/delegation/service"
	delegationUseCase "github.com/allisson/consentbroker/internal/delegation/usecase"
	"github.com/allisson/consentbroker/internal/database"
	"github.com/allisson/consentbroker/internal/http"
	identityService "github.com/allisson/consentbroker/internal/identity/service"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	manifestHTTP "github.com/allisson/consentbroker/internal/manifest/http"
	manifestService "github.com/allisson/consentbroker/internal/manifest/service"
	"github.com/allisson/consentbroker/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	redisClient     *redis.Client
	metricsProvider *metrics.Provider

	// Metrics
	businessMetrics   metrics.BusinessMetrics
	delegationMetrics metrics.DelegationMetrics

	// Registry and consent
	applicationRepository consentUseCase.ApplicationRepository
	capabilityRepository  consentUseCase.CapabilityRepository
	consentRepository     consentUseCase.ConsentRepository
	applicationUseCase    consentUseCase.ApplicationUseCase
	consentUseCase        consentUseCase.ConsentUseCase
	applicationHandler    *consentHTTP.ApplicationHandler
	consentHandler        *consentHTTP.ConsentHandler

	// Capability manifests
	manifest        *manifestDomain.Manifest
	manifestFetcher *manifestService.Fetcher
	manifestHandler *manifestHTTP.ManifestHandler

	// Identity
	tokenVerifier identityService.TokenVerifier

	// Delegation
	destinations      *delegationService.Destinations
	stateStore        delegationUseCase.StateStore
	tokenExchanger    delegationUseCase.TokenExchanger
	forwarder         delegationUseCase.Forwarder
	consentClient     delegationUseCase.ConsentClient
	delegationUseCase delegationUseCase.DelegationUseCase
	delegationHandler *delegationHTTP.DelegationHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	serverCancel  context.CancelFunc

	// Initialization flags and mutex for thread-safety
	mu                        sync.Mutex
	loggerInit                sync.Once
	dbInit                    sync.Once
	txManagerInit             sync.Once
	redisClientInit           sync.Once
	metricsProviderInit       sync.Once
	businessMetricsInit       sync.Once
	delegationMetricsInit     sync.Once
	applicationRepositoryInit sync.Once
	capabilityRepositoryInit  sync.Once
	consentRepositoryInit     sync.Once
	applicationUseCaseInit    sync.Once
	consentUseCaseInit        sync.Once
	applicationHandlerInit    sync.Once
	consentHandlerInit        sync.Once
	manifestInit              sync.Once
	manifestFetcherInit       sync.Once
	manifestHandlerInit       sync.Once
	tokenVerifierInit         sync.Once
	destinationsInit          sync.Once
	stateStoreInit            sync.Once
	tokenExchangerInit        sync.Once
	forwarderInit             sync.Once
	consentClientInit         sync.Once
	delegationUseCaseInit     sync.Once
	delegationHandlerInit     sync.Once
	httpServerInit            sync.Once
	metricsServerInit         sync.Once
	initErrors                map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// RedisClient returns the Redis client used by the redis consent state backend.
func (c *Container) RedisClient() (*redis.Client, error) {
	var err error
	c.redisClientInit.Do(func() {
		c.redisClient, err = c.initRedisClient()
		if err != nil {
			c.initErrors["redisClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redisClient"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business operation metrics recorder.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// DelegationMetrics returns the delegation outcome metrics recorder.
func (c *Container) DelegationMetrics() (metrics.DelegationMetrics, error) {
	var err error
	c.delegationMetricsInit.Do(func() {
		c.delegationMetrics, err = c.initDelegationMetrics()
		if err != nil {
			c.initErrors["delegationMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["delegationMetrics"]; exists {
		return nil, storedErr
	}
	return c.delegationMetrics, nil
}

// HTTPServer returns the API server with every route configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown releases every initialized resource.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.serverCancel != nil {
		c.serverCancel()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates a JSON logger at the configured level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initRedisClient parses REDIS_URL. The connection is established on first use.
func (c *Container) initRedisClient() (*redis.Client, error) {
	opts, err := redis.ParseURL(c.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// initMetricsProvider creates the Prometheus-backed provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates the business metrics recorder, or a no-op one when
// metrics are disabled.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initDelegationMetrics creates the delegation metrics recorder, or a no-op one when
// metrics are disabled.
func (c *Container) initDelegationMetrics() (metrics.DelegationMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for delegation metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpDelegationMetrics(), nil
	}
	return metrics.NewDelegationMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the API server and wires every handler.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	applicationHandler, err := c.ApplicationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get application handler for http server: %w", err)
	}

	consentHandler, err := c.ConsentHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent handler for http server: %w", err)
	}

	delegationHandler, err := c.DelegationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get delegation handler for http server: %w", err)
	}

	manifestHandler, err := c.ManifestHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)

	if c.config.ConsentStateBackend == stateBackendRedis {
		redisClient, err := c.RedisClient()
		if err != nil {
			return nil, fmt.Errorf("failed to get redis client for http server: %w", err)
		}
		server.AddReadinessCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	handlers := http.Handlers{
		Application: applicationHandler,
		Consent:     consentHandler,
		Delegation:  delegationHandler,
		Manifest:    manifestHandler,
	}

	// Bounds the rate limiter's cleanup goroutine; cancelled by Shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	c.serverCancel = cancel

	if metricsProvider != nil {
		server.SetupRouter(ctx, c.config, handlers, c.TokenVerifier(), metricsProvider.MeterProvider())
	} else {
		server.SetupRouter(ctx, c.config, handlers, c.TokenVerifier(), nil)
	}

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider.Handler()), nil
}
