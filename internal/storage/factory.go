package storage

import (
	"context"

	"github.com/lugondev/go-continuum/internal/config"
)

var (
	mongoFactory    func(context.Context, *config.MongoDBConfig) (Repository, error)
	postgresFactory func(context.Context, *config.PostgresConfig) (Repository, error)
)

func RegisterMongoFactory(factory func(context.Context, *config.MongoDBConfig) (Repository, error)) {
	mongoFactory = factory
}

func RegisterPostgresFactory(factory func(context.Context, *config.PostgresConfig) (Repository, error)) {
	postgresFactory = factory
}

func NewMongoRepositoryFromConfig(ctx context.Context, cfg *config.MongoDBConfig) (Repository, error) {
	if mongoFactory == nil {
		panic("mongo factory not registered - import _ \"github.com/lugondev/go-continuum/internal/storage/mongo\"")
	}
	return mongoFactory(ctx, cfg)
}

func NewPostgresRepositoryFromConfig(ctx context.Context, cfg *config.PostgresConfig) (Repository, error) {
	if postgresFactory == nil {
		panic("postgres factory not registered - import _ \"github.com/lugondev/go-continuum/internal/storage/postgres\"")
	}
	return postgresFactory(ctx, cfg)
}
