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

// Insert creates a new fee charge. A second charge for the same
// (professional, cycle) pair trips the unique index and returns ErrDuplicate.
func (repo *MongoFeeChargeRepo) Insert(ctx context.Context, charge *models.FeeCharge) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctxWithTimeout, charge); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating fee charge: %w", err)
	}
	return nil
}

// GetByID retrieves a fee charge by its ID.
func (repo *MongoFeeChargeRepo) GetByID(ctx context.Context, id string) (*models.FeeCharge, error) {
	return repo.findOne(ctx, bson.M{"id": id})
}

// GetByPair retrieves the fee charge for a (professional, cycle) pair.
func (repo *MongoFeeChargeRepo) GetByPair(ctx context.Context, professionalID, cycleID string) (*models.FeeCharge, error) {
	return repo.findOne(ctx, bson.M{"professionalId": professionalID, "cycleId": cycleID})
}

func (repo *MongoFeeChargeRepo) findOne(ctx context.Context, filter bson.M) (*models.FeeCharge, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var charge models.FeeCharge
	if err := repo.coll.FindOne(ctxWithTimeout, filter).Decode(&charge); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching fee charge: %w", err)
	}
	if err := charge.Validate(); err != nil {
		return nil, err
	}
	return &charge, nil
}

// ListByCycle returns a cycle's fee charges, optionally filtered by status.
func (repo *MongoFeeChargeRepo) ListByCycle(ctx context.Context, cycleID string, statuses ...models.FeeChargeStatus) ([]models.FeeCharge, error) {
	filter := bson.M{"cycleId": cycleID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return repo.findMany(ctx, filter)
}

// ListDueRetries returns pending charges whose retry time has passed.
func (repo *MongoFeeChargeRepo) ListDueRetries(ctx context.Context, now time.Time) ([]models.FeeCharge, error) {
	filter := bson.M{
		"status":      models.FeeChargePending,
		"nextRetryAt": bson.M{"$lte": now},
	}
	return repo.findMany(ctx, filter)
}

func (repo *MongoFeeChargeRepo) findMany(ctx context.Context, filter bson.M) ([]models.FeeCharge, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := repo.coll.Find(ctxWithTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing fee charges: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var charges []models.FeeCharge
	if err := cursor.All(ctxWithTimeout, &charges); err != nil {
		return nil, fmt.Errorf("error decoding fee charges: %w", err)
	}
	for i := range charges {
		if err := charges[i].Validate(); err != nil {
			return nil, err
		}
	}
	return charges, nil
}

// ClaimAttempt bumps the attempt counter conditionally on the previous
// count; of two racing chargers exactly one wins the claim.
func (repo *MongoFeeChargeRepo) ClaimAttempt(ctx context.Context, id string, fromAttempts int) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, "attempts": fromAttempts, "status": models.FeeChargePending}
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error claiming fee charge attempt %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// MarkSucceeded finalizes a successful attempt with the collected amount.
func (repo *MongoFeeChargeRepo) MarkSucceeded(ctx context.Context, id, gatewayRef string, amount float64) error {
	return repo.finalize(ctx, id, bson.M{
		"status":        models.FeeChargeSucceeded,
		"gatewayRef":    gatewayRef,
		"amount":        amount,
		"failureReason": "",
	})
}

// MarkWaived records an admin waiver; the charge proceeds as settled.
func (repo *MongoFeeChargeRepo) MarkWaived(ctx context.Context, id string) error {
	return repo.finalize(ctx, id, bson.M{
		"status":        models.FeeChargeWaived,
		"failureReason": "",
	})
}

func (repo *MongoFeeChargeRepo) finalize(ctx context.Context, id string, set bson.M) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set["updatedAt"] = time.Now()
	filter := bson.M{"id": id, "status": bson.M{"$in": []models.FeeChargeStatus{
		models.FeeChargePending, models.FeeChargeFailed,
	}}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error finalizing fee charge %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// RecordFailure stores a failed attempt; final failures move the charge to
// failed, otherwise a retry is scheduled.
func (repo *MongoFeeChargeRepo) RecordFailure(ctx context.Context, id string, reason string, nextRetryAt *time.Time, final bool) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{
		"failureReason": reason,
		"updatedAt":     time.Now(),
	}
	if final {
		set["status"] = models.FeeChargeFailed
		set["nextRetryAt"] = nil
	} else if nextRetryAt != nil {
		set["nextRetryAt"] = *nextRetryAt
	}

	filter := bson.M{"id": id, "status": models.FeeChargePending}
	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error recording fee charge failure %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
