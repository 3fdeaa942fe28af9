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

type MongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewPaymentRepository(db *mongo.Client) *MongoPaymentRepository {
	return &MongoPaymentRepository{
		collection: config.GetCollection(db, "payments"),
	}
}

func (r *MongoPaymentRepository) Insert(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, payment)
	if err != nil {
		return wrapMongoError(err)
	}
	payment.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoPaymentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var payment models.Payment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&payment); err != nil {
		return nil, wrapMongoError(err)
	}
	return &payment, nil
}

func (r *MongoPaymentRepository) Update(ctx context.Context, id primitive.ObjectID, update models.PaymentUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.TransactionID != nil {
		set["transactionId"] = *update.TransactionID
	}
	if update.PaymentDate != nil {
		set["paymentDate"] = *update.PaymentDate
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
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

func (r *MongoPaymentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
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

func (r *MongoPaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "dateCreated", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit).SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, paymentQuery(filter), opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var payments []*models.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, wrapMongoError(err)
	}
	return payments, nil
}

func (r *MongoPaymentRepository) SumByStatus(ctx context.Context, status string, window models.StatsRange) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := bson.M{"status": status}
	applyWindow(query, window)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: query}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
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

func (r *MongoPaymentRepository) Count(ctx context.Context, filter models.PaymentFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, paymentQuery(filter))
	return count, wrapMongoError(err)
}

func paymentQuery(filter models.PaymentFilter) bson.M {
	query := bson.M{}
	if filter.AffiliateID != nil {
		query["affiliateId"] = *filter.AffiliateID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Method != "" {
		query["method"] = filter.Method
	}
	if filter.PaymentDateBefore != nil {
		query["paymentDate"] = bson.M{"$lte": *filter.PaymentDateBefore}
	}
	applyWindow(query, models.StatsRange{StartDate: filter.StartDate, EndDate: filter.EndDate})
	return query
}

func applyWindow(query bson.M, window models.StatsRange) {
	if window.StartDate == nil && window.EndDate == nil {
		return
	}
	dateRange := bson.M{}
	if window.StartDate != nil {
		dateRange["$gte"] = *window.StartDate
	}
	if window.EndDate != nil {
		dateRange["$lte"] = *window.EndDate
	}
	query["dateCreated"] = dateRange
}
