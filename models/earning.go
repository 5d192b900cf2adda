package models

import (
	"fmt"
	"math"
	"time"
)

// Earning is the ledger record of money owed to a professional for one
// appointment. Created exactly once per appointment; never deleted.
type Earning struct {
	ID             string `bson:"id" json:"id"`
	ProfessionalID string `bson:"professionalId" json:"professionalId"`
	AppointmentID  string `bson:"appointmentId" json:"appointmentId"`
	CycleID        string `bson:"cycleId" json:"cycleId"`

	GrossAmount    float64 `bson:"grossAmount" json:"grossAmount"`
	PlatformFeePct float64 `bson:"platformFeePct" json:"platformFeePct"`
	PlatformFee    float64 `bson:"platformFee" json:"platformFee"`
	NetAmount      float64 `bson:"netAmount" json:"netAmount"`

	SessionStart    time.Time `bson:"sessionStart" json:"sessionStart"`
	SessionEnd      time.Time `bson:"sessionEnd" json:"sessionEnd"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	HourlyRate      float64   `bson:"hourlyRate" json:"hourlyRate"`

	Status EarningStatus `bson:"status" json:"status"`

	FeeChargeID string `bson:"feeChargeId,omitempty" json:"feeChargeId,omitempty"`
	PayoutID    string `bson:"payoutId,omitempty" json:"payoutId,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (e *Earning) Validate() error {
	if !e.Status.Valid() {
		return fmt.Errorf("earning %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

// RoundCents rounds a monetary amount to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
