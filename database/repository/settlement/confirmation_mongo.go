package settlementRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Create inserts a new confirmation document. A second confirmation for the
// same appointment trips the unique index and returns ErrDuplicate.
func (repo *MongoConfirmationRepo) Create(ctx context.Context, conf *models.AppointmentConfirmation) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctxWithTimeout, conf); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating confirmation: %w", err)
	}
	return nil
}

// GetByID retrieves a confirmation by its ID.
func (repo *MongoConfirmationRepo) GetByID(ctx context.Context, id string) (*models.AppointmentConfirmation, error) {
	return repo.findOne(ctx, bson.M{"id": id})
}

// GetByAppointmentID retrieves the confirmation for an appointment.
func (repo *MongoConfirmationRepo) GetByAppointmentID(ctx context.Context, appointmentID string) (*models.AppointmentConfirmation, error) {
	return repo.findOne(ctx, bson.M{"appointmentId": appointmentID})
}

func (repo *MongoConfirmationRepo) findOne(ctx context.Context, filter bson.M) (*models.AppointmentConfirmation, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var conf models.AppointmentConfirmation
	if err := repo.coll.FindOne(ctxWithTimeout, filter).Decode(&conf); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching confirmation: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// SetClientConfirmation records the client's answer; only matches while the
// flag is still unset.
func (repo *MongoConfirmationRepo) SetClientConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error {
	return repo.setParty(ctx, id, "clientConfirmation", "clientConfirmedAt", value, at)
}

// SetProfessionalConfirmation records the professional's answer; only
// matches while the flag is still unset.
func (repo *MongoConfirmationRepo) SetProfessionalConfirmation(ctx context.Context, id string, value models.TriState, at time.Time) error {
	return repo.setParty(ctx, id, "professionalConfirmation", "professionalConfirmedAt", value, at)
}

func (repo *MongoConfirmationRepo) setParty(ctx context.Context, id, field, atField string, value models.TriState, at time.Time) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, field: models.TriStateUnset}
	update := bson.M{"$set": bson.M{field: value, atField: at, "updatedAt": time.Now()}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error updating confirmation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// SetFinalStatus transitions finalStatus conditionally.
func (repo *MongoConfirmationRepo) SetFinalStatus(ctx context.Context, id string, from []models.ConfirmationStatus, to models.ConfirmationStatus) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, "finalStatus": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"finalStatus": to, "updatedAt": time.Now()}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error transitioning confirmation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// OpenDispute moves the confirmation to disputed and records the reason.
func (repo *MongoConfirmationRepo) OpenDispute(ctx context.Context, id string, from []models.ConfirmationStatus, reason string, at time.Time) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, "finalStatus": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{
		"finalStatus":      models.ConfirmationDisputed,
		"disputeReason":    reason,
		"disputeCreatedAt": at,
		"updatedAt":        time.Now(),
	}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error opening dispute on confirmation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// ResolveDispute records the admin decision; only matches while disputed.
func (repo *MongoConfirmationRepo) ResolveDispute(ctx context.Context, id string, resolution models.DisputeResolution, to models.ConfirmationStatus, notes string, at time.Time) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, "finalStatus": models.ConfirmationDisputed}
	update := bson.M{"$set": bson.M{
		"finalStatus":       to,
		"disputeResolution": resolution,
		"disputeResolvedAt": at,
		"disputeNotes":      notes,
		"updatedAt":         time.Now(),
	}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error resolving dispute on confirmation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// ListAwaitingResponseBefore returns confirmations still waiting for at
// least one party, created before the cutoff.
func (repo *MongoConfirmationRepo) ListAwaitingResponseBefore(ctx context.Context, cutoff time.Time) ([]models.AppointmentConfirmation, error) {
	filter := bson.M{
		"finalStatus": bson.M{"$in": []models.ConfirmationStatus{
			models.ConfirmationPending,
			models.ConfirmationClientConfirmed,
			models.ConfirmationProfessionalConfirmed,
		}},
		"createdAt": bson.M{"$lt": cutoff},
	}
	return repo.findMany(ctx, filter)
}

// ListByProfessional returns all confirmations for a professional.
func (repo *MongoConfirmationRepo) ListByProfessional(ctx context.Context, professionalID string) ([]models.AppointmentConfirmation, error) {
	return repo.findMany(ctx, bson.M{"professionalId": professionalID})
}

func (repo *MongoConfirmationRepo) findMany(ctx context.Context, filter bson.M) ([]models.AppointmentConfirmation, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := repo.coll.Find(ctxWithTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing confirmations: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var confs []models.AppointmentConfirmation
	if err := cursor.All(ctxWithTimeout, &confs); err != nil {
		return nil, fmt.Errorf("error decoding confirmations: %w", err)
	}
	for i := range confs {
		if err := confs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return confs, nil
}
