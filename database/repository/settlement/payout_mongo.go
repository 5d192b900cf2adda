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

// Insert creates a new payout. A second payout for the same
// (professional, cycle) pair trips the unique index and returns ErrDuplicate.
func (repo *MongoPayoutRepo) Insert(ctx context.Context, payout *models.Payout) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctxWithTimeout, payout); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating payout: %w", err)
	}
	return nil
}

// GetByID retrieves a payout by its ID.
func (repo *MongoPayoutRepo) GetByID(ctx context.Context, id string) (*models.Payout, error) {
	return repo.findOne(ctx, bson.M{"id": id})
}

// GetByPair retrieves the payout for a (professional, cycle) pair.
func (repo *MongoPayoutRepo) GetByPair(ctx context.Context, professionalID, cycleID string) (*models.Payout, error) {
	return repo.findOne(ctx, bson.M{"professionalId": professionalID, "cycleId": cycleID})
}

func (repo *MongoPayoutRepo) findOne(ctx context.Context, filter bson.M) (*models.Payout, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var payout models.Payout
	if err := repo.coll.FindOne(ctxWithTimeout, filter).Decode(&payout); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching payout: %w", err)
	}
	if err := payout.Validate(); err != nil {
		return nil, err
	}
	return &payout, nil
}

// ListByCycle returns a cycle's payouts, optionally filtered by status.
func (repo *MongoPayoutRepo) ListByCycle(ctx context.Context, cycleID string, statuses ...models.PayoutStatus) ([]models.Payout, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"cycleId": cycleID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	cursor, err := repo.coll.Find(ctxWithTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing payouts: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var payouts []models.Payout
	if err := cursor.All(ctxWithTimeout, &payouts); err != nil {
		return nil, fmt.Errorf("error decoding payouts: %w", err)
	}
	for i := range payouts {
		if err := payouts[i].Validate(); err != nil {
			return nil, err
		}
	}
	return payouts, nil
}

// Transition moves a payout between statuses conditionally, optionally
// recording the transfer reference or failure reason.
func (repo *MongoPayoutRepo) Transition(ctx context.Context, id string, from []models.PayoutStatus, to models.PayoutStatus, update PayoutUpdate) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": to, "updatedAt": time.Now()}
	if update.TransferRef != "" {
		set["transferRef"] = update.TransferRef
	}
	if update.FailureReason != "" {
		set["failureReason"] = update.FailureReason
	}
	if update.ProcessedAt != nil {
		set["processedAt"] = *update.ProcessedAt
	}

	filter := bson.M{"id": id, "status": bson.M{"$in": from}}
	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error transitioning payout %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
