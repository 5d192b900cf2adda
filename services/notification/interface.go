package notification

import (
	"context"
	"fmt"

	"bookly/models"

	"go.uber.org/zap"
)

// NotificationService receives settlement events and delivers them to the
// affected professional. Delivery transport lives behind this seam.
type NotificationService interface {
	NotifySettlementEvent(ctx context.Context, event models.SettlementEvent) error
}

// LogNotificationService writes notifications to the log. It is the
// default implementation until a push or email transport is wired in.
type LogNotificationService struct {
	Logger *zap.Logger
}

func NewLogNotificationService(logger *zap.Logger) *LogNotificationService {
	return &LogNotificationService{Logger: logger}
}

func (s *LogNotificationService) NotifySettlementEvent(ctx context.Context, event models.SettlementEvent) error {
	title, body := renderEvent(event)
	s.Logger.Info("Settlement notification",
		zap.String("professionalId", event.ProfessionalID),
		zap.String("type", string(event.Type)),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

func renderEvent(event models.SettlementEvent) (string, string) {
	switch event.Type {
	case models.EventEarningConfirmed:
		return "Earning confirmed",
			fmt.Sprintf("Your earning of %s has been confirmed and will be included in the next payout cycle.", event.Data["net"])
	case models.EventFeeChargeFailed:
		return "Service fee charge failed",
			fmt.Sprintf("We could not collect your platform service fee: %s. We will retry automatically.", event.Data["reason"])
	case models.EventAccountBlocked:
		return "Account blocked",
			"Your account has been blocked because the platform service fee could not be collected. Please update your payment method and contact support."
	case models.EventPayoutCompleted:
		return "Payout sent",
			fmt.Sprintf("Your payout of %s is on its way.", event.Data["net"])
	case models.EventPayoutFailed:
		return "Payout failed",
			fmt.Sprintf("Your payout could not be processed: %s. Our team is looking into it.", event.Data["reason"])
	default:
		return string(event.Type), "Settlement update."
	}
}
