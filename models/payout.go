package models

import (
	"fmt"
	"time"
)

// Payout is the single net disbursement to a professional for one cycle,
// created after that cycle's fee charge settled.
type Payout struct {
	ID             string `bson:"id" json:"id"`
	ProfessionalID string `bson:"professionalId" json:"professionalId"`
	CycleID        string `bson:"cycleId" json:"cycleId"`

	GrossTotal    float64 `bson:"grossTotal" json:"grossTotal"`
	FeeTotal      float64 `bson:"feeTotal" json:"feeTotal"`
	NetTotal      float64 `bson:"netTotal" json:"netTotal"`
	EarningsCount int     `bson:"earningsCount" json:"earningsCount"`

	Status        PayoutStatus `bson:"status" json:"status"`
	TransferRef   string       `bson:"transferRef,omitempty" json:"transferRef,omitempty"`
	FailureReason string       `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	ProcessedAt   *time.Time   `bson:"processedAt,omitempty" json:"processedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (p *Payout) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("payout %s: unknown status %q", p.ID, p.Status)
	}
	return nil
}
