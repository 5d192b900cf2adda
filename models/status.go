package models

// ConfirmationStatus is the derived outcome of the two-party confirmation.
type ConfirmationStatus string

const (
	ConfirmationPending               ConfirmationStatus = "pending"
	ConfirmationClientConfirmed       ConfirmationStatus = "client_confirmed"
	ConfirmationProfessionalConfirmed ConfirmationStatus = "professional_confirmed"
	ConfirmationConfirmed             ConfirmationStatus = "confirmed"
	ConfirmationDisputed              ConfirmationStatus = "disputed"
	ConfirmationConfirmedCanceled     ConfirmationStatus = "confirmed_canceled"
	ConfirmationDenied                ConfirmationStatus = "denied"
)

func (s ConfirmationStatus) Valid() bool {
	switch s {
	case ConfirmationPending, ConfirmationClientConfirmed, ConfirmationProfessionalConfirmed,
		ConfirmationConfirmed, ConfirmationDisputed, ConfirmationConfirmedCanceled, ConfirmationDenied:
		return true
	}
	return false
}

// Terminal reports whether the confirmation can no longer change by party input.
func (s ConfirmationStatus) Terminal() bool {
	switch s {
	case ConfirmationConfirmed, ConfirmationConfirmedCanceled, ConfirmationDenied:
		return true
	}
	return false
}

// DisputeResolution records how an admin settled a disputed confirmation.
type DisputeResolution string

const (
	DisputeResolutionNone           DisputeResolution = "none"
	DisputeResolutionAdminConfirmed DisputeResolution = "admin_confirmed"
	DisputeResolutionAdminDenied    DisputeResolution = "admin_denied"
)

func (r DisputeResolution) Valid() bool {
	switch r {
	case DisputeResolutionNone, DisputeResolutionAdminConfirmed, DisputeResolutionAdminDenied:
		return true
	}
	return false
}

// TriState is a party's confirmation flag: not answered yet, accepted, or declined.
// It is first-class rather than a nullable bool so the unset case is explicit.
type TriState string

const (
	TriStateUnset    TriState = "unset"
	TriStateAccepted TriState = "accepted"
	TriStateDeclined TriState = "declined"
)

func (t TriState) Valid() bool {
	switch t {
	case TriStateUnset, TriStateAccepted, TriStateDeclined:
		return true
	}
	return false
}

func (t TriState) Answered() bool { return t != TriStateUnset }

// EarningStatus is the lifecycle of money owed for one appointment.
type EarningStatus string

const (
	EarningPendingConfirmation EarningStatus = "pending_confirmation"
	EarningConfirmed           EarningStatus = "confirmed"
	EarningCharged             EarningStatus = "charged"
	EarningPaid                EarningStatus = "paid"
	EarningCanceled            EarningStatus = "canceled"
	EarningDisputed            EarningStatus = "disputed"
)

func (s EarningStatus) Valid() bool {
	switch s {
	case EarningPendingConfirmation, EarningConfirmed, EarningCharged,
		EarningPaid, EarningCanceled, EarningDisputed:
		return true
	}
	return false
}

// CycleStatus is the lifecycle of a payout cycle. Transitions are monotonic:
// open -> processing -> closed, or -> failed.
type CycleStatus string

const (
	CycleOpen       CycleStatus = "open"
	CycleProcessing CycleStatus = "processing"
	CycleClosed     CycleStatus = "closed"
	CycleFailed     CycleStatus = "failed"
)

func (s CycleStatus) Valid() bool {
	switch s {
	case CycleOpen, CycleProcessing, CycleClosed, CycleFailed:
		return true
	}
	return false
}

// FeeChargeStatus is the lifecycle of the platform's commission collection.
type FeeChargeStatus string

const (
	FeeChargePending   FeeChargeStatus = "pending"
	FeeChargeSucceeded FeeChargeStatus = "succeeded"
	FeeChargeFailed    FeeChargeStatus = "failed"
	FeeChargeWaived    FeeChargeStatus = "waived"
)

func (s FeeChargeStatus) Valid() bool {
	switch s {
	case FeeChargePending, FeeChargeSucceeded, FeeChargeFailed, FeeChargeWaived:
		return true
	}
	return false
}

// Settled reports whether earnings under this charge may proceed to payout.
func (s FeeChargeStatus) Settled() bool {
	return s == FeeChargeSucceeded || s == FeeChargeWaived
}

// PayoutStatus is the lifecycle of a net disbursement.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutCompleted, PayoutFailed:
		return true
	}
	return false
}
