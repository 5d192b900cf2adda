package models

import "time"

// AppointmentStatus mirrors the booking engine's appointment lifecycle. The
// settlement core only ever reads appointments; it never transitions them.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCanceled  AppointmentStatus = "canceled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// CompletedAppointment is the projection of an appointment the settlement
// core consumes from the booking collaborator: identity, session bounds and
// the snapshotted hourly rate.
type CompletedAppointment struct {
	ID             string            `bson:"id" json:"id"`
	ProfessionalID string            `bson:"professionalId" json:"professionalId"`
	ClientID       string            `bson:"clientId" json:"clientId"`
	StartTime      time.Time         `bson:"startTime" json:"startTime"`
	EndTime        time.Time         `bson:"endTime" json:"endTime"`
	HourlyRate     float64           `bson:"hourlyRate" json:"hourlyRate"`
	Status         AppointmentStatus `bson:"status" json:"status"`
}

// SessionData carries the billing inputs for one finished session into the
// earnings ledger.
type SessionData struct {
	ProfessionalID string
	ClientID       string
	StartTime      time.Time
	EndTime        time.Time
	HourlyRate     float64
}

// DurationMinutes is the billed session length.
func (s SessionData) DurationMinutes() int {
	return int(s.EndTime.Sub(s.StartTime) / time.Minute)
}
