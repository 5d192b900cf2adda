package handlers

import (
	"errors"
	"net/http"

	settlementRepo "bookly/database/repository/settlement"
	"bookly/models"
	"bookly/services/settlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler encapsulates elevated settlement operations: dispute
// resolution, fee waivers, payout reprocessing and run triggers.
type AdminHandler struct {
	Confirmations settlement.ConfirmationManager
	Fees          settlement.FeeChargeProcessor
	Payouts       settlement.PayoutProcessor
	Orchestrator  settlement.Orchestrator
	FeeSource     *settlement.CachedFeeSource
	Cycles        settlementRepo.CycleRepository
	Charges       settlementRepo.FeeChargeRepository
	PayoutRecords settlementRepo.PayoutRepository
}

type resolveDisputeInput struct {
	Action settlement.DisputeAction `json:"action" binding:"required"`
	Notes  string                   `json:"notes"`
}

// ResolveDisputeHandler applies the admin decision to a disputed
// confirmation.
func (ah *AdminHandler) ResolveDisputeHandler(c *gin.Context) {
	var input resolveDisputeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if input.Action != settlement.ActionConfirmCancel && input.Action != settlement.ActionDeny {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be confirm_cancel or deny"})
		return
	}

	conf, err := ah.Confirmations.ResolveDispute(c.Request.Context(), c.Param("id"), input.Action, input.Notes)
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// WaiveFeeHandler forgives a fee charge and releases its earnings toward
// payout.
func (ah *AdminHandler) WaiveFeeHandler(c *gin.Context) {
	charge, err := ah.Fees.WaiveFee(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}

// ReprocessPayoutHandler retries a failed payout.
func (ah *AdminHandler) ReprocessPayoutHandler(c *gin.Context) {
	payout, err := ah.Payouts.ReprocessPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

// RunSettlementHandler triggers one orchestrator pass outside the cron
// schedule.
func (ah *AdminHandler) RunSettlementHandler(c *gin.Context) {
	report, err := ah.Orchestrator.RunOnce(c.Request.Context())
	if err != nil {
		zap.L().Error("Manual settlement run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type feePercentInput struct {
	Percent *float64 `json:"percent" binding:"required"`
}

// SetFeePercentHandler updates the platform fee percent applied to newly
// materialized earnings.
func (ah *AdminHandler) SetFeePercentHandler(c *gin.Context) {
	var input feePercentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if *input.Percent < 0 || *input.Percent > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "percent must be between 0 and 100"})
		return
	}

	if err := ah.FeeSource.SetFeePercent(c.Request.Context(), *input.Percent); err != nil {
		zap.L().Error("Failed to update fee percent", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update fee percent"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"percent": *input.Percent})
}

// ListCyclesHandler returns cycles, optionally filtered by status.
func (ah *AdminHandler) ListCyclesHandler(c *gin.Context) {
	status := models.CycleStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown cycle status"})
		return
	}

	var (
		cycles []models.PayoutCycle
		err    error
	)
	if status != "" {
		cycles, err = ah.Cycles.ListByStatus(c.Request.Context(), status)
	} else {
		for _, s := range []models.CycleStatus{models.CycleOpen, models.CycleProcessing, models.CycleClosed, models.CycleFailed} {
			var part []models.PayoutCycle
			part, err = ah.Cycles.ListByStatus(c.Request.Context(), s)
			if err != nil {
				break
			}
			cycles = append(cycles, part...)
		}
	}
	if err != nil {
		zap.L().Error("Failed to list cycles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cycles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}

// GetCycleHandler returns one cycle with its fee charges and payouts.
func (ah *AdminHandler) GetCycleHandler(c *gin.Context) {
	id := c.Param("id")
	cycle, err := ah.Cycles.GetByID(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	charges, err := ah.Charges.ListByCycle(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	payouts, err := ah.PayoutRecords.ListByCycle(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cycle":      cycle,
		"feeCharges": charges,
		"payouts":    payouts,
	})
}

func respondRepoError(c *gin.Context, err error) {
	if errors.Is(err, settlementRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	zap.L().Error("Admin query failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
