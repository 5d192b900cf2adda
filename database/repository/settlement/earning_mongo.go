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

// Insert creates a new earning document. A second earning for the same
// appointment trips the unique index and returns ErrDuplicate.
func (repo *MongoEarningRepo) Insert(ctx context.Context, earning *models.Earning) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.coll.InsertOne(ctxWithTimeout, earning); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating earning: %w", err)
	}
	return nil
}

// GetByID retrieves an earning by its ID.
func (repo *MongoEarningRepo) GetByID(ctx context.Context, id string) (*models.Earning, error) {
	return repo.findOne(ctx, bson.M{"id": id})
}

// GetByAppointmentID retrieves the earning for an appointment.
func (repo *MongoEarningRepo) GetByAppointmentID(ctx context.Context, appointmentID string) (*models.Earning, error) {
	return repo.findOne(ctx, bson.M{"appointmentId": appointmentID})
}

func (repo *MongoEarningRepo) findOne(ctx context.Context, filter bson.M) (*models.Earning, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var earning models.Earning
	if err := repo.coll.FindOne(ctxWithTimeout, filter).Decode(&earning); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching earning: %w", err)
	}
	if err := earning.Validate(); err != nil {
		return nil, err
	}
	return &earning, nil
}

// ListByProfessionalCycle returns a professional's earnings in one cycle,
// optionally filtered by status.
func (repo *MongoEarningRepo) ListByProfessionalCycle(ctx context.Context, professionalID, cycleID string, statuses ...models.EarningStatus) ([]models.Earning, error) {
	filter := bson.M{"professionalId": professionalID, "cycleId": cycleID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return repo.findMany(ctx, filter)
}

// ListByProfessional returns all earnings for a professional.
func (repo *MongoEarningRepo) ListByProfessional(ctx context.Context, professionalID string) ([]models.Earning, error) {
	return repo.findMany(ctx, bson.M{"professionalId": professionalID})
}

func (repo *MongoEarningRepo) findMany(ctx context.Context, filter bson.M) ([]models.Earning, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := repo.coll.Find(ctxWithTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing earnings: %w", err)
	}
	defer cursor.Close(ctxWithTimeout)

	var earnings []models.Earning
	if err := cursor.All(ctxWithTimeout, &earnings); err != nil {
		return nil, fmt.Errorf("error decoding earnings: %w", err)
	}
	for i := range earnings {
		if err := earnings[i].Validate(); err != nil {
			return nil, err
		}
	}
	return earnings, nil
}

// DistinctProfessionalsByCycle returns the professionals holding earnings of
// the given status in a cycle.
func (repo *MongoEarningRepo) DistinctProfessionalsByCycle(ctx context.Context, cycleID string, status models.EarningStatus) ([]string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	values, err := repo.coll.Distinct(ctxWithTimeout, "professionalId", bson.M{"cycleId": cycleID, "status": status})
	if err != nil {
		return nil, fmt.Errorf("error listing professionals for cycle %s: %w", cycleID, err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// CountByCycle counts a cycle's earnings in the given statuses.
func (repo *MongoEarningRepo) CountByCycle(ctx context.Context, cycleID string, statuses ...models.EarningStatus) (int64, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"cycleId": cycleID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	count, err := repo.coll.CountDocuments(ctxWithTimeout, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting earnings for cycle %s: %w", cycleID, err)
	}
	return count, nil
}

// TotalsByProfessionalCycle aggregates gross, fee and net sums plus the
// earning IDs for one (professional, cycle) pair in one status.
func (repo *MongoEarningRepo) TotalsByProfessionalCycle(ctx context.Context, professionalID, cycleID string, status models.EarningStatus) (*EarningTotals, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"professionalId": professionalID,
			"cycleId":        cycleID,
			"status":         status,
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"gross":      bson.M{"$sum": "$grossAmount"},
			"fee":        bson.M{"$sum": "$platformFee"},
			"net":        bson.M{"$sum": "$netAmount"},
			"count":      bson.M{"$sum": 1},
			"earningIds": bson.M{"$push": "$id"},
		}}},
	}

	cursor, err := repo.coll.Aggregate(ctxWithTimeout, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating earnings for professional %s: %w", professionalID, err)
	}
	defer cursor.Close(ctxWithTimeout)

	var results []EarningTotals
	if err := cursor.All(ctxWithTimeout, &results); err != nil {
		return nil, fmt.Errorf("error decoding earning totals: %w", err)
	}
	if len(results) == 0 {
		return &EarningTotals{}, nil
	}
	return &results[0], nil
}

// Transition moves one earning between statuses conditionally.
func (repo *MongoEarningRepo) Transition(ctx context.Context, id string, from []models.EarningStatus, to models.EarningStatus) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"id": id, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}}

	res, err := repo.coll.UpdateOne(ctxWithTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("error transitioning earning %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// MarkCharged moves confirmed earnings to charged. Earnings already charged
// are not matched, which makes batch retries harmless.
func (repo *MongoEarningRepo) MarkCharged(ctx context.Context, ids []string, feeChargeID string) (int64, error) {
	return repo.markBulk(ctx, ids, models.EarningConfirmed, models.EarningCharged, bson.M{"feeChargeId": feeChargeID})
}

// MarkPaid moves charged earnings to paid.
func (repo *MongoEarningRepo) MarkPaid(ctx context.Context, ids []string, payoutID string) (int64, error) {
	return repo.markBulk(ctx, ids, models.EarningCharged, models.EarningPaid, bson.M{"payoutId": payoutID})
}

func (repo *MongoEarningRepo) markBulk(ctx context.Context, ids []string, from, to models.EarningStatus, extra bson.M) (int64, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": to, "updatedAt": time.Now()}
	for k, v := range extra {
		set[k] = v
	}

	filter := bson.M{"id": bson.M{"$in": ids}, "status": from}
	res, err := repo.coll.UpdateMany(ctxWithTimeout, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("error bulk-updating earnings to %s: %w", to, err)
	}
	return res.ModifiedCount, nil
}
