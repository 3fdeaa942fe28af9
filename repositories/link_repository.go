package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
)

type MongoLinkRepository struct {
	collection *mongo.Collection
}

func NewLinkRepository(db *mongo.Client) *MongoLinkRepository {
	return &MongoLinkRepository{
		collection: config.GetCollection(db, "links"),
	}
}

func (r *MongoLinkRepository) Insert(ctx context.Context, link *models.AffiliateLink) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, link)
	if err != nil {
		return wrapMongoError(err)
	}
	link.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoLinkRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var link models.AffiliateLink
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&link); err != nil {
		return nil, wrapMongoError(err)
	}
	return &link, nil
}

func (r *MongoLinkRepository) ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, status string, limit, offset int64) ([]*models.AffiliateLink, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := bson.M{"affiliateId": affiliateID}
	if status != "" {
		query["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "dateCreated", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit).SetSkip(offset)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var links []*models.AffiliateLink
	if err := cursor.All(ctx, &links); err != nil {
		return nil, wrapMongoError(err)
	}
	return links, nil
}

func (r *MongoLinkRepository) IncrementClicks(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"clicks": 1}})
	return wrapMongoError(err)
}

// IncrementConversions bumps the counter and recomputes the derived
// conversion rate in the same pipeline update.
func (r *MongoLinkRepository) IncrementConversions(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := bson.A{
		bson.M{"$set": bson.M{"conversions": bson.M{"$add": bson.A{"$conversions", 1}}}},
		bson.M{"$set": bson.M{"conversionRate": bson.M{"$cond": bson.A{
			bson.M{"$gt": bson.A{"$clicks", 0}},
			bson.M{"$divide": bson.A{"$conversions", "$clicks"}},
			0,
		}}}},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	return wrapMongoError(err)
}
