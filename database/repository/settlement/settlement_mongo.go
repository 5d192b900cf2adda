package settlementRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	confirmationColl = "appointment_confirmations"
	earningColl      = "earnings"
	cycleColl        = "payout_cycles"
	feeChargeColl    = "fee_charges"
	payoutColl       = "payouts"
)

const queryTimeout = 5 * time.Second

// MongoConfirmationRepo implements ConfirmationRepository over MongoDB.
type MongoConfirmationRepo struct {
	coll *mongo.Collection
}

func NewMongoConfirmationRepo(db *mongo.Database) *MongoConfirmationRepo {
	return &MongoConfirmationRepo{coll: db.Collection(confirmationColl)}
}

// MongoEarningRepo implements EarningRepository over MongoDB.
type MongoEarningRepo struct {
	coll *mongo.Collection
}

func NewMongoEarningRepo(db *mongo.Database) *MongoEarningRepo {
	return &MongoEarningRepo{coll: db.Collection(earningColl)}
}

// MongoCycleRepo implements CycleRepository over MongoDB.
type MongoCycleRepo struct {
	coll *mongo.Collection
}

func NewMongoCycleRepo(db *mongo.Database) *MongoCycleRepo {
	return &MongoCycleRepo{coll: db.Collection(cycleColl)}
}

// MongoFeeChargeRepo implements FeeChargeRepository over MongoDB.
type MongoFeeChargeRepo struct {
	coll *mongo.Collection
}

func NewMongoFeeChargeRepo(db *mongo.Database) *MongoFeeChargeRepo {
	return &MongoFeeChargeRepo{coll: db.Collection(feeChargeColl)}
}

// MongoPayoutRepo implements PayoutRepository over MongoDB.
type MongoPayoutRepo struct {
	coll *mongo.Collection
}

func NewMongoPayoutRepo(db *mongo.Database) *MongoPayoutRepo {
	return &MongoPayoutRepo{coll: db.Collection(payoutColl)}
}

// EnsureIndexes creates the unique constraints the settlement invariants
// rely on: one confirmation and one earning per appointment, one cycle per
// window start, one fee charge and one payout per (professional, cycle).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	specs := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{confirmationColl, mongo.IndexModel{Keys: bson.D{{Key: "appointmentId", Value: 1}}, Options: unique}},
		{confirmationColl, mongo.IndexModel{Keys: bson.D{{Key: "finalStatus", Value: 1}, {Key: "createdAt", Value: 1}}}},
		{earningColl, mongo.IndexModel{Keys: bson.D{{Key: "appointmentId", Value: 1}}, Options: unique}},
		{earningColl, mongo.IndexModel{Keys: bson.D{{Key: "cycleId", Value: 1}, {Key: "professionalId", Value: 1}, {Key: "status", Value: 1}}}},
		{cycleColl, mongo.IndexModel{Keys: bson.D{{Key: "startDate", Value: 1}}, Options: unique}},
		{cycleColl, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "cutoffAt", Value: 1}}}},
		{feeChargeColl, mongo.IndexModel{Keys: bson.D{{Key: "professionalId", Value: 1}, {Key: "cycleId", Value: 1}}, Options: unique}},
		{feeChargeColl, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "nextRetryAt", Value: 1}}}},
		{payoutColl, mongo.IndexModel{Keys: bson.D{{Key: "professionalId", Value: 1}, {Key: "cycleId", Value: 1}}, Options: unique}},
	}

	for _, spec := range specs {
		if _, err := db.Collection(spec.coll).Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", spec.coll, err)
		}
	}
	return nil
}
