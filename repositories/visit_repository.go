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

type MongoVisitRepository struct {
	collection *mongo.Collection
}

func NewVisitRepository(db *mongo.Client) *MongoVisitRepository {
	return &MongoVisitRepository{
		collection: config.GetCollection(db, "visits"),
	}
}

func (r *MongoVisitRepository) Insert(ctx context.Context, visit *models.Visit) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, visit)
	if err != nil {
		return wrapMongoError(err)
	}
	visit.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *MongoVisitRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var visit models.Visit
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&visit); err != nil {
		return nil, wrapMongoError(err)
	}
	return &visit, nil
}

// CountSameDay counts visits for (affiliate, ip) on the given calendar day.
// The dedup key is deliberately day-granular; campaign and link are not part
// of it.
func (r *MongoVisitRepository) CountSameDay(ctx context.Context, affiliateID primitive.ObjectID, ip string, day time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"affiliateId": affiliateID,
		"ipAddress":   ip,
		"dateCreated": bson.M{"$gte": dayStart, "$lt": dayEnd},
	})
	return count, wrapMongoError(err)
}

func (r *MongoVisitRepository) CountSince(ctx context.Context, affiliateID primitive.ObjectID, ip string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"affiliateId": affiliateID,
		"ipAddress":   ip,
		"dateCreated": bson.M{"$gt": since},
	})
	return count, wrapMongoError(err)
}

func (r *MongoVisitRepository) FirstByIP(ctx context.Context, ip string) (*models.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "dateCreated", Value: 1}})

	var visit models.Visit
	if err := r.collection.FindOne(ctx, bson.M{"ipAddress": ip}, opts).Decode(&visit); err != nil {
		return nil, wrapMongoError(err)
	}
	return &visit, nil
}

func (r *MongoVisitRepository) LatestUnconverted(ctx context.Context, affiliateID primitive.ObjectID, ip string) (*models.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "dateCreated", Value: -1}})
	filter := bson.M{
		"affiliateId": affiliateID,
		"ipAddress":   ip,
		"converted":   false,
	}

	var visit models.Visit
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&visit); err != nil {
		return nil, wrapMongoError(err)
	}
	return &visit, nil
}

// MarkConverted flips the conversion fields exactly once per visit; a visit
// already converted is not matched, so an order can never claim it twice.
func (r *MongoVisitRepository) MarkConverted(ctx context.Context, id primitive.ObjectID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "converted": false}
	update := bson.M{"$set": bson.M{"converted": true, "conversionId": orderID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapMongoError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoVisitRepository) CountByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error) {
	return r.countWindow(ctx, bson.M{"affiliateId": affiliateID}, window)
}

func (r *MongoVisitRepository) CountConverted(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error) {
	return r.countWindow(ctx, bson.M{"affiliateId": affiliateID, "converted": true}, window)
}

// IDsByLink returns the ids of every visit recorded through the link, used to
// join commissions back to the link they came from
func (r *MongoVisitRepository) IDsByLink(ctx context.Context, linkID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"linkId": linkID}, opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrapMongoError(err)
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *MongoVisitRepository) countWindow(ctx context.Context, query bson.M, window models.StatsRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if window.StartDate != nil || window.EndDate != nil {
		dateRange := bson.M{}
		if window.StartDate != nil {
			dateRange["$gte"] = *window.StartDate
		}
		if window.EndDate != nil {
			dateRange["$lte"] = *window.EndDate
		}
		query["dateCreated"] = dateRange
	}

	count, err := r.collection.CountDocuments(ctx, query)
	return count, wrapMongoError(err)
}
