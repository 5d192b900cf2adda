package models

import "time"

// RunReport is the structured result of one orchestrator pass. Individual
// item failures land in Errors; they never abort the run.
type RunReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	ConfirmationsCreated int `json:"confirmationsCreated"`
	AutoConfirmed        int `json:"autoConfirmed"`
	CyclesAdvanced       int `json:"cyclesAdvanced"`
	ChargesAttempted     int `json:"chargesAttempted"`
	ChargesSucceeded     int `json:"chargesSucceeded"`
	PayoutsCompleted     int `json:"payoutsCompleted"`
	PayoutsFailed        int `json:"payoutsFailed"`

	Errors []string `json:"errors,omitempty"`
}

// AddError appends a failure message to the report.
func (r *RunReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// PayoutBatchSummary is the result of one processAllReadyCycles pass.
type PayoutBatchSummary struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}
