package models

import (
	"fmt"
	"time"
)

// AppointmentConfirmation tracks the two-party acknowledgment that a session
// happened as billed. One per completed appointment; never deleted.
type AppointmentConfirmation struct {
	ID             string `bson:"id" json:"id"`
	AppointmentID  string `bson:"appointmentId" json:"appointmentId"`
	ClientID       string `bson:"clientId" json:"clientId"`
	ProfessionalID string `bson:"professionalId" json:"professionalId"`

	ClientConfirmation       TriState   `bson:"clientConfirmation" json:"clientConfirmation"`
	ClientConfirmedAt        *time.Time `bson:"clientConfirmedAt,omitempty" json:"clientConfirmedAt,omitempty"`
	ProfessionalConfirmation TriState   `bson:"professionalConfirmation" json:"professionalConfirmation"`
	ProfessionalConfirmedAt  *time.Time `bson:"professionalConfirmedAt,omitempty" json:"professionalConfirmedAt,omitempty"`

	FinalStatus ConfirmationStatus `bson:"finalStatus" json:"finalStatus"`

	DisputeReason     string            `bson:"disputeReason,omitempty" json:"disputeReason,omitempty"`
	DisputeCreatedAt  *time.Time        `bson:"disputeCreatedAt,omitempty" json:"disputeCreatedAt,omitempty"`
	DisputeResolvedAt *time.Time        `bson:"disputeResolvedAt,omitempty" json:"disputeResolvedAt,omitempty"`
	DisputeResolution DisputeResolution `bson:"disputeResolution" json:"disputeResolution"`
	DisputeNotes      string            `bson:"disputeNotes,omitempty" json:"disputeNotes,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Validate rejects documents whose enum fields decoded to unknown values.
func (c *AppointmentConfirmation) Validate() error {
	if !c.ClientConfirmation.Valid() {
		return fmt.Errorf("confirmation %s: unknown client confirmation %q", c.ID, c.ClientConfirmation)
	}
	if !c.ProfessionalConfirmation.Valid() {
		return fmt.Errorf("confirmation %s: unknown professional confirmation %q", c.ID, c.ProfessionalConfirmation)
	}
	if !c.FinalStatus.Valid() {
		return fmt.Errorf("confirmation %s: unknown final status %q", c.ID, c.FinalStatus)
	}
	if !c.DisputeResolution.Valid() {
		return fmt.Errorf("confirmation %s: unknown dispute resolution %q", c.ID, c.DisputeResolution)
	}
	return nil
}

// DeriveConfirmationStatus computes the final status from the two party flags
// and the dispute resolution. FinalStatus is never set independently of this.
func DeriveConfirmationStatus(client, professional TriState, resolution DisputeResolution) ConfirmationStatus {
	switch resolution {
	case DisputeResolutionAdminConfirmed:
		return ConfirmationConfirmedCanceled
	case DisputeResolutionAdminDenied:
		return ConfirmationDenied
	}
	if client == TriStateDeclined || professional == TriStateDeclined {
		return ConfirmationDisputed
	}
	switch {
	case client == TriStateAccepted && professional == TriStateAccepted:
		return ConfirmationConfirmed
	case client == TriStateAccepted:
		return ConfirmationClientConfirmed
	case professional == TriStateAccepted:
		return ConfirmationProfessionalConfirmed
	}
	return ConfirmationPending
}
