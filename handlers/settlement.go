package handlers

import (
	"net/http"

	"bookly/services/settlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettlementHandler exposes the party-facing confirmation and earnings
// surface.
type SettlementHandler struct {
	Confirmations settlement.ConfirmationManager
	Ledger        settlement.EarningsLedger
}

func NewSettlementHandler(cm settlement.ConfirmationManager, ledger settlement.EarningsLedger) *SettlementHandler {
	return &SettlementHandler{
		Confirmations: cm,
		Ledger:        ledger,
	}
}

type confirmInput struct {
	Accepted *bool  `json:"accepted" binding:"required"`
	Reason   string `json:"reason"`
}

// ConfirmAsClientHandler records the client's answer on a confirmation.
func (sh *SettlementHandler) ConfirmAsClientHandler(c *gin.Context) {
	id := c.Param("id")
	var input confirmInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	conf, err := sh.Confirmations.ConfirmAsClient(c.Request.Context(), id, *input.Accepted, input.Reason)
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// ConfirmAsProfessionalHandler records the professional's answer.
func (sh *SettlementHandler) ConfirmAsProfessionalHandler(c *gin.Context) {
	id := c.Param("id")
	var input confirmInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	conf, err := sh.Confirmations.ConfirmAsProfessional(c.Request.Context(), id, *input.Accepted, input.Reason)
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// GetConfirmationHandler returns one confirmation by id.
func (sh *SettlementHandler) GetConfirmationHandler(c *gin.Context) {
	conf, err := sh.Confirmations.GetConfirmation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// ListConfirmationsHandler returns a professional's confirmations.
func (sh *SettlementHandler) ListConfirmationsHandler(c *gin.Context) {
	confs, err := sh.Confirmations.ListByProfessional(c.Request.Context(), c.Param("professionalId"))
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmations": confs})
}

// ListEarningsHandler returns a professional's earnings ledger.
func (sh *SettlementHandler) ListEarningsHandler(c *gin.Context) {
	earnings, err := sh.Ledger.ListByProfessional(c.Request.Context(), c.Param("professionalId"))
	if err != nil {
		respondSettlementError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": earnings})
}

// respondSettlementError maps settlement error codes onto HTTP statuses.
func respondSettlementError(c *gin.Context, err error) {
	switch {
	case settlement.HasCode(err, settlement.CodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case settlement.HasCode(err, settlement.CodeAlreadyExists),
		settlement.HasCode(err, settlement.CodeAlreadyConfirmed),
		settlement.HasCode(err, settlement.CodeAlreadyResolved),
		settlement.HasCode(err, settlement.CodeConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case settlement.HasCode(err, settlement.CodeNotEligible),
		settlement.HasCode(err, settlement.CodeInvalidTransition),
		settlement.HasCode(err, settlement.CodeNoEarnings),
		settlement.HasCode(err, settlement.CodeFeesNotSettled):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case settlement.HasCode(err, settlement.CodeTransferFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		zap.L().Error("Settlement request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
