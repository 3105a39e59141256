package parking

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing parking operation.
type OperationLog struct {
	Operation string
	AccountID AccountID
	LotID     LotID
	SessionID SessionID
	Plate     Plate
	Amount    AmountCents
	Attempts  int
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithReceiptNotifier wires the sink that receives receipts after commits.
func WithReceiptNotifier(notifier ReceiptNotifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithConflictRetries overrides DefaultConflictRetries. Negative values are ignored.
func WithConflictRetries(retries int) ServiceOption {
	return func(service *Service) {
		if retries >= 0 {
			service.conflictRetries = retries
		}
	}
}

// WithConflictBackoff overrides the per-attempt backoff step.
func WithConflictBackoff(step time.Duration) ServiceOption {
	return func(service *Service) {
		if step >= 0 {
			service.conflictBackoff = step
		}
	}
}
