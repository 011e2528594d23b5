package repository

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/reelpilot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	postsCollection    = "posts"
	channelsCollection = "channels"
)

// EnsureMongoIndexes creates the index the due scan relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}},
	})
	return err
}

type mongoPostRepository struct {
	coll *mongo.Collection
}

func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{coll: db.Collection(postsCollection)}
}

func (r *mongoPostRepository) Upsert(ctx context.Context, post *models.Post) (*models.Post, error) {
	next := post.Clone()
	next.Version = post.Version + 1

	if post.Version == 0 {
		if _, err := r.coll.InsertOne(ctx, next); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrVersionConflict
			}
			slog.Info(err.Error())
			return nil, err
		}
		return next, nil
	}

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": post.ID, "version": post.Version}, next)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrVersionConflict
	}
	return next, nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *mongoPostRepository) List(ctx context.Context) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

type mongoChannelRepository struct {
	coll *mongo.Collection
}

func NewMongoChannelRepository(db *mongo.Database) ChannelRepository {
	return &mongoChannelRepository{coll: db.Collection(channelsCollection)}
}

func (r *mongoChannelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &ch, nil
}

func (r *mongoChannelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	channels := []*models.Channel{}
	if err := cursor.All(ctx, &channels); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return channels, nil
}

func (r *mongoChannelRepository) Upsert(ctx context.Context, ch *models.Channel) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": ch.ID}, ch, options.Replace().SetUpsert(true))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
