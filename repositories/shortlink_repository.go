package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
)

type MongoShortLinkRepository struct {
	collection *mongo.Collection
}

func NewShortLinkRepository(db *mongo.Client) *MongoShortLinkRepository {
	return &MongoShortLinkRepository{
		collection: config.GetCollection(db, "shortlinks"),
	}
}

func (r *MongoShortLinkRepository) Insert(ctx context.Context, shortLink *models.ShortLink) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, shortLink)
	if err != nil {
		return wrapMongoError(err)
	}
	shortLink.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoShortLinkRepository) GetByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var shortLink models.ShortLink
	if err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&shortLink); err != nil {
		return nil, wrapMongoError(err)
	}
	return &shortLink, nil
}

func (r *MongoShortLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"code": code})
	if err != nil {
		return false, wrapMongoError(err)
	}
	return count > 0, nil
}
