package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/go-continuum/internal/storage"
)

type mongoSubmissionRepository struct {
	collection *mongo.Collection
}

func (r *mongoSubmissionRepository) Save(ctx context.Context, submission *storage.SubmissionModel) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": submission.ID}, submission, opts)
	return err
}

func (r *mongoSubmissionRepository) findOne(ctx context.Context, filter bson.M) (*storage.SubmissionModel, error) {
	var submission storage.SubmissionModel
	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &submission, nil
}

func (r *mongoSubmissionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*storage.SubmissionModel, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var submissions []*storage.SubmissionModel
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *mongoSubmissionRepository) FindByID(ctx context.Context, id string) (*storage.SubmissionModel, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoSubmissionRepository) FindBySignature(ctx context.Context, signature string) (*storage.SubmissionModel, error) {
	return r.findOne(ctx, bson.M{"signature": signature})
}

func (r *mongoSubmissionRepository) FindBySequence(ctx context.Context, sequence uint64) ([]*storage.SubmissionModel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"sequence": sequence}, opts)
}

func (r *mongoSubmissionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.SubmissionModel, error) {
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{}, opts)
}

type mongoCheckpointRepository struct {
	collection *mongo.Collection
}

func (r *mongoCheckpointRepository) LoadCheckpoint(ctx context.Context, key string) (uint64, bool, error) {
	var cp storage.CheckpointModel
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&cp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cp.Sequence, true, nil
}

// SaveCheckpoint raises the stored sequence with $max so that concurrent
// writers cannot move it backwards.
func (r *mongoCheckpointRepository) SaveCheckpoint(ctx context.Context, key string, sequence uint64) error {
	update := bson.M{
		"$max": bson.M{"sequence": int64(sequence)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}
