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

type MongoCommissionRepository struct {
	collection *mongo.Collection
}

func NewCommissionRepository(db *mongo.Client) *MongoCommissionRepository {
	return &MongoCommissionRepository{
		collection: config.GetCollection(db, "commissions"),
	}
}

// Insert writes a new ledger row. The unique (affiliateId, orderId, type)
// index makes concurrent double-commissioning impossible; violations surface
// as ErrDuplicateKey.
func (r *MongoCommissionRepository) Insert(ctx context.Context, commission *models.Commission) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, commission)
	if err != nil {
		return wrapMongoError(err)
	}
	commission.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoCommissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var commission models.Commission
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&commission); err != nil {
		return nil, wrapMongoError(err)
	}
	return &commission, nil
}

func (r *MongoCommissionRepository) Update(ctx context.Context, id primitive.ObjectID, update models.CommissionUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Amount != nil {
		set["commissionAmount"] = *update.Amount
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Reference != nil {
		set["reference"] = *update.Reference
	}
	if update.DatePaid != nil {
		set["datePaid"] = *update.DatePaid
	}
	if update.PaymentID != nil {
		set["paymentId"] = *update.PaymentID
	}
	if update.Meta != nil {
		set["meta"] = update.Meta
	}
	if len(set) == 0 {
		return nil
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

func (r *MongoCommissionRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
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

func (r *MongoCommissionRepository) List(ctx context.Context, filter models.CommissionFilter) ([]*models.Commission, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sortDir := -1
	if filter.Ascending {
		sortDir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "dateCreated", Value: sortDir}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit).SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, commissionQuery(filter), opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var commissions []*models.Commission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, wrapMongoError(err)
	}
	return commissions, nil
}

func (r *MongoCommissionRepository) Count(ctx context.Context, filter models.CommissionFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, commissionQuery(filter))
	return count, wrapMongoError(err)
}

func (r *MongoCommissionRepository) SumAmount(ctx context.Context, filter models.CommissionFilter) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: commissionQuery(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$commissionAmount"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, wrapMongoError(err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *MongoCommissionRepository) Reserve(ctx context.Context, ids []primitive.ObjectID, paymentID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// The paymentId-absent guard makes reservation first-writer-wins: a
	// commission claimed by a concurrent payout is simply not matched here.
	filter := bson.M{
		"_id":       bson.M{"$in": ids},
		"status":    models.CommissionStatusApproved,
		"paymentId": bson.M{"$exists": false},
	}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"paymentId": paymentID}})
	if err != nil {
		return 0, wrapMongoError(err)
	}
	return result.ModifiedCount, nil
}

func (r *MongoCommissionRepository) Release(ctx context.Context, paymentID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"status": models.CommissionStatusApproved},
		"$unset": bson.M{"paymentId": "", "datePaid": ""},
	}
	_, err := r.collection.UpdateMany(ctx, bson.M{"paymentId": paymentID}, update)
	return wrapMongoError(err)
}

func commissionQuery(filter models.CommissionFilter) bson.M {
	query := bson.M{}
	if filter.AffiliateID != nil {
		query["affiliateId"] = *filter.AffiliateID
	}
	if len(filter.Statuses) == 1 {
		query["status"] = filter.Statuses[0]
	} else if len(filter.Statuses) > 1 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.Kind != "" {
		query["type"] = filter.Kind
	}
	if len(filter.VisitIDs) > 0 {
		query["visitId"] = bson.M{"$in": filter.VisitIDs}
	}
	if filter.Unassigned {
		query["paymentId"] = bson.M{"$exists": false}
	}
	if filter.StartDate != nil || filter.EndDate != nil {
		dateRange := bson.M{}
		if filter.StartDate != nil {
			dateRange["$gte"] = *filter.StartDate
		}
		if filter.EndDate != nil {
			dateRange["$lte"] = *filter.EndDate
		}
		query["dateCreated"] = dateRange
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexEscape(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"reference": pattern},
			bson.M{"description": pattern},
			bson.M{"orderId": filter.Search},
		}
	}
	return query
}
