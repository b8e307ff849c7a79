// Package container wires the application together: database, cache,
// metrics, services, and the HTTP server, initialized in dependency order.
package container

import (
	"fmt"
	stdhttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/application/service"
	"github.com/approvalflow/engine/internal/config"
	"github.com/approvalflow/engine/internal/infrastructure/cache"
	"github.com/approvalflow/engine/internal/infrastructure/persistence/repository"
	httpadapter "github.com/approvalflow/engine/internal/interfaces/http"
	"github.com/approvalflow/engine/internal/metrics"
	"github.com/approvalflow/engine/pkg/database"
)

// Container holds all initialized components.
type Container struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *database.DB
	redisClient *redis.Client

	definitionService service.DefinitionService
	workflowService   service.WorkflowService
	userService       service.UserService

	server *httpadapter.Server
}

// New builds the full component graph from configuration. Components are
// initialized in dependency order: database, cache, metrics, services,
// HTTP server.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Container{cfg: cfg, logger: logger}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	defRepo := repository.NewDefinitionRepository(db.DB, logger)
	instanceRepo := repository.NewInstanceRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	txManager := repository.NewTxManager(db.DB, logger)

	defCache := c.initCache()
	recorder, metricsHandler := c.initMetrics()

	svcLogger := &zapLoggerAdapter{logger: logger}
	c.definitionService = service.NewDefinitionService(defRepo, defCache, svcLogger)
	c.workflowService = service.NewWorkflowService(
		instanceRepo,
		defRepo,
		auditRepo,
		defCache,
		txManager,
		recorder,
		svcLogger,
	)
	c.userService = service.NewUserService(userRepo, svcLogger)

	c.server = httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		c.definitionService,
		c.workflowService,
		c.userService,
		metricsHandler,
		svcLogger,
	)

	return c, nil
}

// initCache returns the Redis-backed definition cache when enabled,
// otherwise a no-op cache so services need no nil checks.
func (c *Container) initCache() port.DefinitionCache {
	if !c.cfg.Redis.Enabled {
		return cache.NewNoopCache()
	}

	c.redisClient = redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})
	c.logger.Info("Definition cache enabled", zap.String("addr", c.cfg.Redis.Addr))

	return cache.NewDefinitionCache(c.redisClient, c.cfg.Redis.TTL, c.logger)
}

// initMetrics returns the action recorder and the /metrics handler. With
// metrics disabled the recorder is a no-op and the handler is nil, which
// makes the server skip the endpoint.
func (c *Container) initMetrics() (service.Recorder, stdhttp.Handler) {
	if !c.cfg.Metrics.Enabled {
		return service.NopRecorder{}, nil
	}

	registry := prometheus.NewRegistry()
	return metrics.New(registry), promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Server returns the HTTP server.
func (c *Container) Server() *httpadapter.Server {
	return c.server
}

// DefinitionService returns the definition service.
func (c *Container) DefinitionService() service.DefinitionService {
	return c.definitionService
}

// WorkflowService returns the workflow service.
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowService
}

// UserService returns the user service.
func (c *Container) UserService() service.UserService {
	return c.userService
}

// Close releases held resources in reverse initialization order.
func (c *Container) Close() error {
	var firstErr error

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			firstErr = err
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// zapLoggerAdapter adapts zap.Logger to the keysAndValues logger
// interfaces used by the service and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
