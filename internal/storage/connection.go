package storage

import (
	"context"
	"fmt"

	"github.com/lugondev/go-continuum/internal/config"
)

type DatabaseType string

const (
	DatabaseTypeMemory   DatabaseType = "memory"
	DatabaseTypeMongoDB  DatabaseType = "mongodb"
	DatabaseTypePostgres DatabaseType = "postgres"
)

type ConnectionManager struct {
	config     *config.DatabaseConfig
	repository Repository
}

// NewConnectionManager creates a manager for cfg. A disabled database is
// served from memory so that callers always have a repository.
func NewConnectionManager(cfg *config.DatabaseConfig) *ConnectionManager {
	return &ConnectionManager{
		config: cfg,
	}
}

func (cm *ConnectionManager) Connect(ctx context.Context) (Repository, error) {
	if cm.repository != nil {
		return cm.repository, nil
	}

	var repo Repository
	var err error

	dbType := DatabaseType(cm.config.Type)
	if !cm.config.Enabled {
		dbType = DatabaseTypeMemory
	}

	switch dbType {
	case DatabaseTypeMemory:
		repo = NewMemoryRepository()
	case DatabaseTypeMongoDB:
		repo, err = NewMongoRepositoryFromConfig(ctx, &cm.config.MongoDB)
	case DatabaseTypePostgres:
		repo, err = NewPostgresRepositoryFromConfig(ctx, &cm.config.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cm.config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cm.repository = repo
	return repo, nil
}

func (cm *ConnectionManager) GetRepository() (Repository, error) {
	if cm.repository == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return cm.repository, nil
}

func (cm *ConnectionManager) Close() error {
	if cm.repository != nil {
		return cm.repository.Close()
	}
	return nil
}
