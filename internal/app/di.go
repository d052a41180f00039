// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jwilger/authorizir/internal/authz/domain"
	"github.com/jwilger/authorizir/internal/authz/repository"
	"github.com/jwilger/authorizir/internal/authz/usecase"
	"github.com/jwilger/authorizir/internal/config"
	"github.com/jwilger/authorizir/internal/database"
	"github.com/jwilger/authorizir/internal/metrics"

	authzhttp "github.com/jwilger/authorizir/internal/authz/http"
	apphttp "github.com/jwilger/authorizir/internal/http"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	engineMetrics   metrics.EngineMetrics

	// Managers
	txManager database.TxManager

	// Repositories
	entityRepo    usecase.EntityRepository
	hierarchyRepo usecase.HierarchyRepository
	ruleRepo      usecase.RuleRepository

	// Use Cases
	registryUseCase   *usecase.RegistryUseCase
	hierarchyUseCase  *usecase.HierarchyUseCase
	ruleUseCase       *usecase.RuleUseCase
	decisionUseCase   *usecase.DecisionUseCase
	reconcilerUseCase *usecase.ReconcilerUseCase

	// Servers
	httpServer    *apphttp.Server
	metricsServer *apphttp.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu              sync.Mutex
	loggerInit      sync.Once
	dbInit          sync.Once
	metricsInit     sync.Once
	txManagerInit   sync.Once
	reposInit       sync.Once
	useCasesInit    sync.Once
	httpServerInit  sync.Once
	metricsSrvInit  sync.Once
	reconcilerInit  sync.Once
	initErrors      map[string]error
	initErrorsMutex sync.Mutex
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
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.storeInitError("db", fmt.Errorf("failed to connect to database: %w", err))
			return
		}
		c.db = db
	})
	if err := c.initError("db"); err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("txManager", fmt.Errorf("failed to get database for tx manager: %w", err))
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if err := c.initError("txManager"); err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsInit.Do(func() {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.storeInitError("metrics", fmt.Errorf("failed to create metrics provider: %w", err))
			return
		}
		engineMetrics, err := metrics.NewEngineMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.storeInitError("metrics", fmt.Errorf("failed to create engine metrics: %w", err))
			return
		}
		c.metricsProvider = provider
		c.engineMetrics = engineMetrics
	})
	if err := c.initError("metrics"); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// EngineMetrics returns the engine metrics recorder, or nil when metrics are disabled.
func (c *Container) EngineMetrics() (metrics.EngineMetrics, error) {
	if _, err := c.MetricsProvider(); err != nil {
		return nil, err
	}
	return c.engineMetrics, nil
}

// initRepositories creates the repository set for the configured driver.
func (c *Container) initRepositories() error {
	db, err := c.DB()
	if err != nil {
		return fmt.Errorf("failed to get database for repositories: %w", err)
	}

	// Select the appropriate repositories based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		c.entityRepo = repository.NewMySQLEntityRepository(db)
		c.hierarchyRepo = repository.NewMySQLHierarchyRepository(db)
		c.ruleRepo = repository.NewMySQLRuleRepository(db)
	case "postgres":
		c.entityRepo = repository.NewPostgreSQLEntityRepository(db)
		c.hierarchyRepo = repository.NewPostgreSQLHierarchyRepository(db)
		c.ruleRepo = repository.NewPostgreSQLRuleRepository(db)
	default:
		return fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
	return nil
}

// Repositories returns the repository set.
func (c *Container) Repositories() (usecase.EntityRepository, usecase.HierarchyRepository, usecase.RuleRepository, error) {
	c.reposInit.Do(func() {
		if err := c.initRepositories(); err != nil {
			c.storeInitError("repositories", err)
		}
	})
	if err := c.initError("repositories"); err != nil {
		return nil, nil, nil, err
	}
	return c.entityRepo, c.hierarchyRepo, c.ruleRepo, nil
}

// initUseCases creates the use case layer.
func (c *Container) initUseCases() error {
	txManager, err := c.TxManager()
	if err != nil {
		return err
	}
	entityRepo, hierarchyRepo, ruleRepo, err := c.Repositories()
	if err != nil {
		return err
	}
	engineMetrics, err := c.EngineMetrics()
	if err != nil {
		return err
	}

	logger := c.Logger()
	c.registryUseCase = usecase.NewRegistryUseCase(txManager, entityRepo, hierarchyRepo, logger)
	c.hierarchyUseCase = usecase.NewHierarchyUseCase(txManager, entityRepo, hierarchyRepo, logger)
	c.ruleUseCase = usecase.NewRuleUseCase(txManager, entityRepo, ruleRepo, logger)

	var decisionMetrics usecase.DecisionMetrics
	if engineMetrics != nil {
		decisionMetrics = engineMetrics
	}
	c.decisionUseCase = usecase.NewDecisionUseCase(txManager, entityRepo, ruleRepo, decisionMetrics, logger)
	return nil
}

// RegistryUseCase returns the entity registration use case.
func (c *Container) RegistryUseCase() (*usecase.RegistryUseCase, error) {
	if err := c.useCases(); err != nil {
		return nil, err
	}
	return c.registryUseCase, nil
}

// HierarchyUseCase returns the hierarchy use case.
func (c *Container) HierarchyUseCase() (*usecase.HierarchyUseCase, error) {
	if err := c.useCases(); err != nil {
		return nil, err
	}
	return c.hierarchyUseCase, nil
}

// RuleUseCase returns the rule use case.
func (c *Container) RuleUseCase() (*usecase.RuleUseCase, error) {
	if err := c.useCases(); err != nil {
		return nil, err
	}
	return c.ruleUseCase, nil
}

// DecisionUseCase returns the decision use case.
func (c *Container) DecisionUseCase() (*usecase.DecisionUseCase, error) {
	if err := c.useCases(); err != nil {
		return nil, err
	}
	return c.decisionUseCase, nil
}

// ReconcilerUseCase returns the declaration reconciler.
func (c *Container) ReconcilerUseCase() (*usecase.ReconcilerUseCase, error) {
	c.reconcilerInit.Do(func() {
		if err := c.useCases(); err != nil {
			c.storeInitError("reconciler", err)
			return
		}
		txManager, err := c.TxManager()
		if err != nil {
			c.storeInitError("reconciler", err)
			return
		}
		db, err := c.DB()
		if err != nil {
			c.storeInitError("reconciler", err)
			return
		}
		entityRepo, hierarchyRepo, ruleRepo, err := c.Repositories()
		if err != nil {
			c.storeInitError("reconciler", err)
			return
		}
		c.reconcilerUseCase = usecase.NewReconcilerUseCase(
			txManager,
			database.NewAdvisoryLocker(db, c.config.DBDriver, c.config.EngineID),
			entityRepo,
			hierarchyRepo,
			ruleRepo,
			c.registryUseCase,
			c.hierarchyUseCase,
			c.ruleUseCase,
			c.Logger(),
		)
	})
	if err := c.initError("reconciler"); err != nil {
		return nil, err
	}
	return c.reconcilerUseCase, nil
}

// useCases runs the shared use case initialization.
func (c *Container) useCases() error {
	c.useCasesInit.Do(func() {
		if err := c.initUseCases(); err != nil {
			c.storeInitError("useCases", err)
		}
	})
	return c.initError("useCases")
}

// HTTPServer returns the API HTTP server instance.
func (c *Container) HTTPServer() (*apphttp.Server, error) {
	c.httpServerInit.Do(func() {
		if err := c.useCases(); err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		meterProvider, err := c.MetricsProvider()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		logger := c.Logger()
		routerCfg := apphttp.RouterConfig{
			Logger:            logger,
			MetricsNamespace:  c.config.MetricsNamespace,
			RateLimitEnabled:  c.config.RateLimitEnabled,
			RateLimitRPS:      c.config.RateLimitRequestsPerSec,
			RateLimitBurst:    c.config.RateLimitBurst,
			CORSEnabled:       c.config.CORSEnabled,
			CORSAllowOrigins:  c.config.CORSAllowOrigins,
			SubjectHandler:    authzhttp.NewEntityHandler(c.registryUseCase, domain.KindSubject, logger),
			ObjectHandler:     authzhttp.NewEntityHandler(c.registryUseCase, domain.KindObject, logger),
			PermissionHandler: authzhttp.NewEntityHandler(c.registryUseCase, domain.KindPermission, logger),
			RuleHandler:       authzhttp.NewRuleHandler(c.ruleUseCase, logger),
			HierarchyHandler:  authzhttp.NewHierarchyHandler(c.hierarchyUseCase, logger),
			DecisionHandler:   authzhttp.NewDecisionHandler(c.decisionUseCase, logger),
		}
		if meterProvider != nil {
			routerCfg.MeterProvider = meterProvider.MeterProvider()
		}

		c.httpServer = apphttp.NewServer(c.config.ServerHost, c.config.ServerPort, logger, apphttp.NewRouter(routerCfg))
	})
	if err := c.initError("httpServer"); err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*apphttp.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	c.metricsSrvInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeInitError("metricsServer", err)
			return
		}
		c.metricsServer = apphttp.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if err := c.initError("metricsServer"); err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// storeInitError records a component initialization failure.
func (c *Container) storeInitError(component string, err error) {
	c.initErrorsMutex.Lock()
	defer c.initErrorsMutex.Unlock()
	c.initErrors[component] = err
}

// initError returns a previously recorded initialization failure.
func (c *Container) initError(component string) error {
	c.initErrorsMutex.Lock()
	defer c.initErrorsMutex.Unlock()
	return c.initErrors[component]
}
