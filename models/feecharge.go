package models

import (
	"fmt"
	"time"
)

// FeeCharge is the platform's commission collection against a professional's
// confirmed earnings for one cycle. At most one per (professional, cycle).
type FeeCharge struct {
	ID             string `bson:"id" json:"id"`
	ProfessionalID string `bson:"professionalId" json:"professionalId"`
	CycleID        string `bson:"cycleId" json:"cycleId"`

	Amount float64         `bson:"amount" json:"amount"`
	Status FeeChargeStatus `bson:"status" json:"status"`

	Attempts      int        `bson:"attempts" json:"attempts"`
	NextRetryAt   *time.Time `bson:"nextRetryAt,omitempty" json:"nextRetryAt,omitempty"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	GatewayRef    string     `bson:"gatewayRef,omitempty" json:"gatewayRef,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (f *FeeCharge) Validate() error {
	if !f.Status.Valid() {
		return fmt.Errorf("fee charge %s: unknown status %q", f.ID, f.Status)
	}
	return nil
}
