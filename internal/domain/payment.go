package domain

// PaymentOutcomeKind is what the gateway round trip resolved to
type PaymentOutcomeKind string

const (
	OutcomeAuthorized PaymentOutcomeKind = "authorized"
	OutcomeDeclined   PaymentOutcomeKind = "declined"
	OutcomeCancelled  PaymentOutcomeKind = "cancelled"
	OutcomeError      PaymentOutcomeKind = "error"
)

// PaymentOutcome is the gateway result the order lifecycle reconciles against
type PaymentOutcome struct {
	Kind      PaymentOutcomeKind
	PaymentID string
	Reason    string
}

// TargetStatus maps an outcome to the terminal order status it produces
func (o PaymentOutcome) TargetStatus() OrderStatus {
	switch o.Kind {
	case OutcomeAuthorized:
		return OrderStatusCompleted
	case OutcomeCancelled:
		return OrderStatusCancelled
	default:
		return OrderStatusFailed
	}
}
