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

// Insert creates a new cycle document. A second cycle for the same window
// start trips the unique index and returns ErrDuplicate.
func (repo *MongoCycleRepo) Insert(ctx context.Context, cycle *models.PayoutCycle) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctxWithTimeout, cycle); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating cycle: %w", err)
	}
	return nil
}

// GetByID retrieves a cycle by its ID.
func (repo *MongoCycleRepo) GetByID(ctx context.Context, id string) (*models.PayoutCycle, error) {
	return repo.findOne(ctx, bson.M{"id": id})
}

// FindCovering returns the cycle whose window [start, end) contains the date.
func (repo *MongoCycleRepo) FindCovering(ctx context.Context, date time.Time) (*models.PayoutCycle, error) {
	filter := bson.M{
		"startDate": bson.M{"$lte": date},
		"endDate":   bson.M{"$gt": date},
	}
	return repo.findOne(ctx, filter)
}

func (repo *MongoCycleRepo) findOne(ctx context.Context, filter bson.M) (*models.PayoutCycle, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var cycle models.PayoutCycle
	if err := repo.coll.FindOne(ctxWithTimeout, filter).Decode(&cycle); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching cycle: %w", err)
	}
	if err := cycle.Validate(); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// ListOpenPastCutoff returns open cycles whose cutoff has passed.
func (repo *MongoCycleRepo) ListOpenPastCutoff(ctx context.Context, now time.Time) ([]models.PayoutCycle, error) {
	filter := bson.M{
		"status":   models.CycleOpen,
		"cutoffAt": bson.M{"$lte": now},
	}
	return repo.findMany(ctx, filter)
}

// ListByStatus returns all cycles in one status.
func (repo *MongoCycleRepo) ListByStatus(ctx context.Context, status models.CycleStatus) ([]models.PayoutCycle, error) {
	return repo.findMany(ctx, bson.M{"status": status})
}

func (repo *MongoCycleRepo) findMany(ctx context.Context, filter bson.M) ([]models.PayoutCycle, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := repo.coll.Find(ctxWithTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing cycles: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var cycles []models.PayoutCycle
	if err := cursor.All(ctxWithTimeout, &cycles); err != nil {
		return nil, fmt.Errorf("error decoding cycles: %w", err)
	}
	for i := range cycles {
		if err := cycles[i].Validate(); err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

// Transition moves a cycle between statuses conditionally; the loser of a
// racing transition gets ErrConflict.
func (repo *MongoCycleRepo) Transition(ctx context.Context, id string, from, to models.CycleStatus, processedAt *time.Time) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": to, "updatedAt": time.Now()}
	if processedAt != nil {
		set["processedAt"] = *processedAt
	}

	filter := bson.M{"id": id, "status": from}
	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error transitioning cycle %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
