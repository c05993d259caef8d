package persistence

import (
	"context"
	"errors"

	"social-publisher/domain/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const diagnosticsCollection = "diagnostics"

// DiagnosticsRepository stores capability snapshots in MongoDB. A repository
// built without a database accepts writes and returns no history.
type DiagnosticsRepository struct {
	coll *mongo.Collection
}

func NewDiagnosticsRepository(db *mongo.Database) *DiagnosticsRepository {
	if db == nil {
		return &DiagnosticsRepository{}
	}
	return &DiagnosticsRepository{coll: db.Collection(diagnosticsCollection)}
}

func (r *DiagnosticsRepository) Save(ctx context.Context, d *model.Diagnostics) error {
	if r.coll == nil || d == nil {
		return nil
	}
	_, err := r.coll.InsertOne(ctx, d)
	return err
}

func (r *DiagnosticsRepository) Latest(ctx context.Context, userID string, platform model.Platform) (*model.Diagnostics, error) {
	if r.coll == nil {
		return nil, nil
	}
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "platform", Value: platform}}
	opts := options.FindOne().SetSort(bson.D{{Key: "checked_at", Value: -1}})
	var d model.Diagnostics
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}
