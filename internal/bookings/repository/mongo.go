package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// bookingDocument adds the field the TTL index expires on.
type bookingDocument struct {
	model.Booking `bson:",inline"`
	ExpiresAt     time.Time `bson:"expires_at"`
}

type mongoBookingRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
	now        func() time.Time
}

func NewMongoBookingRepository(client *mongo.Client, databaseName string, opTimeout time.Duration) BookingRepository {
	return &mongoBookingRepository{
		client:     client,
		collection: client.Database(databaseName).Collection(CollectionName),
		opTimeout:  opTimeout,
		now:        time.Now,
	}
}

// notExpired hides documents the TTL monitor has not removed yet.
func (r *mongoBookingRepository) notExpired() bson.M {
	return bson.M{"$gt": r.now().UTC()}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	doc := bookingDocument{
		Booking:   *booking,
		ExpiresAt: booking.CreatedAt.Add(ttl),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "expires_at": r.notExpired()}

	var doc bookingDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &doc.Booking, nil
}

// UpdateStatus filters on status and version so the update is a single
// atomic compare-and-set. expires_at is not touched.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, message string, at time.Time) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        id,
		"status":     model.StatusPending,
		"version":    expectedVersion,
		"expires_at": r.notExpired(),
	}
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"message":    message,
			"updated_at": at.UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bookingDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return &doc.Booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	// nothing matched: tell a missing record apart from a lost race
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, bookingserrors.ErrVersionConflict
}

// dueForRequeue mirrors Booking.DueForRequeue as a query.
func (r *mongoBookingRepository) dueForRequeue(cutoff time.Time) bson.M {
	cutoff = cutoff.UTC()
	return bson.M{
		"status":     model.StatusPending,
		"created_at": bson.M{"$lt": cutoff},
		"expires_at": r.notExpired(),
		"$or": bson.A{
			bson.M{"requeued_at": bson.M{"$exists": false}},
			bson.M{"requeued_at": bson.M{"$lt": cutoff}},
		},
	}
}

func (r *mongoBookingRepository) MarkRequeued(ctx context.Context, id string, expectedVersion int64, cutoff, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	filter := r.dueForRequeue(cutoff)
	filter["_id"] = id
	filter["version"] = expectedVersion
	update := bson.M{"$set": bson.M{"requeued_at": at.UTC()}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark booking requeued: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return findErr
	}
	return bookingserrors.ErrVersionConflict
}

func (r *mongoBookingRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()

	filter := r.dueForRequeue(cutoff)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stale bookings: %w", err)
	}

	bookings := make([]*model.Booking, 0, len(docs))
	for i := range docs {
		bookings = append(bookings, &docs[i].Booking)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Ping(ctx, readpref.Primary())
}
