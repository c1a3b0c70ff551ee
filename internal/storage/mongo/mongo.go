package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/go-continuum/internal/config"
	"github.com/lugondev/go-continuum/internal/storage"
)

type MongoRepository struct {
	client         *mongo.Client
	database       *mongo.Database
	submissions    *mongo.Collection
	checkpoints    *mongo.Collection
	submissionRepo storage.SubmissionRepository
	checkpointRepo storage.CheckpointRepository
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	repo := &MongoRepository{
		client:      client,
		database:    database,
		submissions: database.Collection("submissions"),
		checkpoints: database.Collection("sequence_checkpoints"),
	}
	repo.submissionRepo = &mongoSubmissionRepository{collection: repo.submissions}
	repo.checkpointRepo = &mongoCheckpointRepository{collection: repo.checkpoints}

	if err := repo.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "signature", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "sequence", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err := r.submissions.Indexes().CreateMany(ctx, models)
	return err
}

func (r *MongoRepository) Submissions() storage.SubmissionRepository {
	return r.submissionRepo
}

func (r *MongoRepository) Checkpoints() storage.CheckpointRepository {
	return r.checkpointRepo
}

func (r *MongoRepository) Close() error {
	if r.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.client.Disconnect(ctx)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func init() {
	storage.RegisterMongoFactory(func(ctx context.Context, cfg *config.MongoDBConfig) (storage.Repository, error) {
		repo, err := NewMongoRepository(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo repository: %w", err)
		}
		return repo, nil
	})
}
