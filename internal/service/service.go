// Package service wires configuration, storage and the run catalog into a
// Runner.
package service

import (
	"context"
	"fmt"

	"github.com/graph-analysis/internal/centrality"
	"github.com/graph-analysis/internal/repository"
	"github.com/graph-analysis/internal/storage"
	"github.com/graph-analysis/pkg/config"
	"github.com/graph-analysis/pkg/utils"
)

// Service is the main application service.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	db      *repository.Repositories
	storage storage.Storage
	runner  *Runner
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Service{
		config: cfg,
		logger: logger,
	}, nil
}

// Initialize opens the database and storage and builds the runner.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Debug("Initializing service components...")

	if err := s.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.initStorage(); err != nil {
		s.Close()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	runner, err := NewRunner(RunnerConfig{
		Engine:   s.config.Engine,
		Export:   s.config.Export,
		Runs:     s.db.Runs,
		Storage:  s.storage,
		Registry: centrality.DefaultRegistry(),
		Logger:   s.logger,
	})
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to create runner: %w", err)
	}
	s.runner = runner

	s.logger.Debug("Service components initialized")
	return nil
}

// initDatabase initializes the database connection and repositories.
func (s *Service) initDatabase(ctx context.Context) error {
	s.logger.Debug("Connecting to database (%s)...", s.config.Database.Type)

	if err := s.config.EnsureDatabaseDir(); err != nil {
		return err
	}

	repos, err := repository.Open(ctx, &s.config.Database)
	if err != nil {
		return err
	}

	s.db = repos
	return nil
}

// initStorage initializes the object storage used for exports.
func (s *Service) initStorage() error {
	s.logger.Debug("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	return nil
}

// Runner returns the run orchestrator. Initialize must have succeeded.
func (s *Service) Runner() *Runner {
	return s.runner
}

// Storage returns the configured storage.
func (s *Service) Storage() storage.Storage {
	return s.storage
}

// Close releases the database connection.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := s.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
