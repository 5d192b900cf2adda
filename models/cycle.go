package models

import (
	"fmt"
	"time"
)

// PayoutCycle is a fixed calendar window that buckets earnings for batch
// fee-charging and payout. Windows are contiguous and non-overlapping; the
// cutoff is when the cycle closes for new earnings and becomes chargeable.
type PayoutCycle struct {
	ID        string      `bson:"id" json:"id"`
	StartDate time.Time   `bson:"startDate" json:"startDate"`
	EndDate   time.Time   `bson:"endDate" json:"endDate"`
	CutoffAt  time.Time   `bson:"cutoffAt" json:"cutoffAt"`
	Status    CycleStatus `bson:"status" json:"status"`

	ProcessedAt *time.Time `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (c *PayoutCycle) Validate() error {
	if !c.Status.Valid() {
		return fmt.Errorf("cycle %s: unknown status %q", c.ID, c.Status)
	}
	return nil
}

// Covers reports whether t falls inside the cycle window [start, end).
func (c *PayoutCycle) Covers(t time.Time) bool {
	return !t.Before(c.StartDate) && t.Before(c.EndDate)
}
