package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
)

type MongoAffiliateRepository struct {
	collection *mongo.Collection
}

func NewAffiliateRepository(db *mongo.Client) *MongoAffiliateRepository {
	return &MongoAffiliateRepository{
		collection: config.GetCollection(db, "affiliates"),
	}
}

func (r *MongoAffiliateRepository) Insert(ctx context.Context, affiliate *models.Affiliate) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, affiliate)
	if err != nil {
		return wrapMongoError(err)
	}
	affiliate.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoAffiliateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAffiliateRepository) GetByUserID(ctx context.Context, userID string) (*models.Affiliate, error) {
	return r.findOne(ctx, bson.M{"userId": userID})
}

func (r *MongoAffiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	return r.findOne(ctx, bson.M{"referralCode": code})
}

func (r *MongoAffiliateRepository) findOne(ctx context.Context, filter bson.M) (*models.Affiliate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var affiliate models.Affiliate
	if err := r.collection.FindOne(ctx, filter).Decode(&affiliate); err != nil {
		return nil, wrapMongoError(err)
	}
	return &affiliate, nil
}

func (r *MongoAffiliateRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"referralCode": code})
	if err != nil {
		return false, wrapMongoError(err)
	}
	return count > 0, nil
}

func (r *MongoAffiliateRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string, approvedAt *time.Time, notes string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": status}
	if approvedAt != nil {
		set["dateApproved"] = *approvedAt
	}
	if notes != "" {
		set["notes"] = notes
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return wrapMongoError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAffiliateRepository) UpdateStats(ctx context.Context, id primitive.ObjectID, stats models.AffiliateStats) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"totalEarnings":  stats.TotalEarnings,
		"totalPaid":      stats.TotalPaid,
		"totalUnpaid":    stats.TotalUnpaid,
		"totalReferrals": stats.TotalReferrals,
		"totalVisits":    stats.TotalVisits,
		"conversionRate": stats.ConversionRate,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return wrapMongoError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAffiliateRepository) List(ctx context.Context, filter models.AffiliateFilter) ([]*models.Affiliate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "dateRegistered", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit).SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, affiliateQuery(filter), opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var affiliates []*models.Affiliate
	if err := cursor.All(ctx, &affiliates); err != nil {
		return nil, wrapMongoError(err)
	}
	return affiliates, nil
}

func (r *MongoAffiliateRepository) Count(ctx context.Context, filter models.AffiliateFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, affiliateQuery(filter))
	return count, wrapMongoError(err)
}

func (r *MongoAffiliateRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapMongoError(err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func affiliateQuery(filter models.AffiliateFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexEscape(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"referralCode": pattern},
			bson.M{"userId": pattern},
			bson.M{"paymentEmail": pattern},
		}
	}
	return query
}
