package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	appointmentColl = "appointments"
	blockedColl     = "blocked_intervals"
)

const queryTimeout = 5 * time.Second

// MongoBookingRepo is the settlement core's read/write seam into the booking
// engine's collections. It only reads appointments and only ever unblocks
// slots; booking lifecycle stays with the booking engine.
type MongoBookingRepo struct {
	appointments *mongo.Collection
	blocked      *mongo.Collection
}

func NewMongoBookingRepo(db *mongo.Database) *MongoBookingRepo {
	return &MongoBookingRepo{
		appointments: db.Collection(appointmentColl),
		blocked:      db.Collection(blockedColl),
	}
}

// GetAppointment retrieves one appointment projection.
func (repo *MongoBookingRepo) GetAppointment(ctx context.Context, id string) (*models.CompletedAppointment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var appt models.CompletedAppointment
	if err := repo.appointments.FindOne(ctxWithTimeout, bson.M{"id": id}).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("appointment %s not found", id)
		}
		return nil, fmt.Errorf("error fetching appointment: %w", err)
	}
	return &appt, nil
}

// ListCompletedWithoutConfirmation returns completed appointments that ended
// before the given time and have no confirmation document yet.
func (repo *MongoBookingRepo) ListCompletedWithoutConfirmation(ctx context.Context, endedBefore time.Time, limit int64) ([]models.CompletedAppointment, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"status":  models.AppointmentCompleted,
			"endTime": bson.M{"$lt": endedBefore},
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "appointment_confirmations",
			"localField":   "id",
			"foreignField": "appointmentId",
			"as":           "confirmations",
		}}},
		bson.D{{Key: "$match", Value: bson.M{"confirmations": bson.M{"$size": 0}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := repo.appointments.Aggregate(ctxWithTimeout, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error listing unconfirmed appointments: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var appts []models.CompletedAppointment
	if err := cursor.All(ctxWithTimeout, &appts); err != nil {
		return nil, fmt.Errorf("error decoding appointments: %w", err)
	}
	return appts, nil
}

// RestoreSlot lifts the block the completed session left on a professional's
// recurring slot. Invoked only when an admin confirms a cancellation.
func (repo *MongoBookingRepo) RestoreSlot(ctx context.Context, professionalID, dayOfWeek string, startMinute int) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"professionalId": professionalID,
		"dayOfWeek":      dayOfWeek,
		"start":          startMinute,
	}
	if _, err := repo.blocked.DeleteOne(ctxWithTimeout, filter); err != nil {
		return fmt.Errorf("error restoring slot for professional %s: %w", professionalID, err)
	}
	return nil
}
