package booking

import (
	"fmt"
	"time"
)

// Tiered cancellation policy boundaries.
const (
	FullRefundWindow = 24 * time.Hour
	HalfRefundWindow = 12 * time.Hour
	MinCancelWindow  = 2 * time.Hour
)

// RefundForCancellation computes the refund owed when cancelling at `now`
// an appointment starting at `scheduled` with the given fee.
//
//	>= 24h  full refund
//	>= 12h  50%
//	>=  2h  no refund, cancellation still permitted
//	<   2h  rejected; the appointment must run its lifecycle
func RefundForCancellation(now, scheduled time.Time, fee float64) (float64, error) {
	until := scheduled.Sub(now)

	switch {
	case until >= FullRefundWindow:
		return fee, nil
	case until >= HalfRefundWindow:
		return fee / 2, nil
	case until >= MinCancelWindow:
		return 0, nil
	default:
		return 0, &PolicyViolationError{
			Message: fmt.Sprintf("cancellation requires at least %s notice, appointment starts in %s",
				MinCancelWindow, until.Round(time.Minute)),
		}
	}
}
