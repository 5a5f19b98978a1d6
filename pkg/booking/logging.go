package booking

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation     string
	ActorID       string
	RequestID     string
	QuoteID       string
	ReservationID string
	Amount        AmountCents
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventNotifier wires the notifier that receives lifecycle events once
// their transaction has committed.
func WithEventNotifier(notifier EventNotifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithPaymentLookup wires the checkout session lookup used by ConfirmPayment.
func WithPaymentLookup(lookup PaymentLookup) ServiceOption {
	return func(service *Service) {
		service.payments = lookup
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
