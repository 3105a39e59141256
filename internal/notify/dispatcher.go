// Package notify delivers parking receipts outside the request path.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"go.uber.org/zap"
)

const (
	// DefaultQueueSize bounds how many receipts wait for delivery.
	DefaultQueueSize = 256
	deliveryTimeout  = 5 * time.Second
)

// Sink delivers one receipt.
type Sink interface {
	Deliver(ctx context.Context, receipt parking.Receipt) error
}

// Dispatcher implements parking.ReceiptNotifier on a buffered queue drained by a
// single worker. A full queue drops the receipt.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	queue   chan parking.Receipt
	mutex   sync.RWMutex
	closed  bool
	done    chan struct{}
	timeout time.Duration
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(sink Sink, logger *zap.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	dispatcher := &Dispatcher{
		sink:    sink,
		logger:  logger.Named("notify"),
		queue:   make(chan parking.Receipt, queueSize),
		done:    make(chan struct{}),
		timeout: deliveryTimeout,
	}
	go dispatcher.run()
	return dispatcher
}

// NotifyReceipt enqueues the receipt without blocking.
func (dispatcher *Dispatcher) NotifyReceipt(_ context.Context, receipt parking.Receipt) {
	dispatcher.mutex.RLock()
	defer dispatcher.mutex.RUnlock()
	if dispatcher.closed {
		dispatcher.logger.Warn("receipt dropped after shutdown", receiptFields(receipt)...)
		return
	}
	select {
	case dispatcher.queue <- receipt:
	default:
		dispatcher.logger.Warn("receipt queue full, dropping receipt", receiptFields(receipt)...)
	}
}

// Close stops accepting receipts and waits for queued ones to be delivered or ctx to end.
func (dispatcher *Dispatcher) Close(ctx context.Context) error {
	dispatcher.mutex.Lock()
	if !dispatcher.closed {
		dispatcher.closed = true
		close(dispatcher.queue)
	}
	dispatcher.mutex.Unlock()
	select {
	case <-dispatcher.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (dispatcher *Dispatcher) run() {
	defer close(dispatcher.done)
	for receipt := range dispatcher.queue {
		ctx, cancel := context.WithTimeout(context.Background(), dispatcher.timeout)
		err := dispatcher.sink.Deliver(ctx, receipt)
		cancel()
		if err != nil {
			dispatcher.logger.Warn("receipt delivery failed", append(receiptFields(receipt), zap.Error(err))...)
		}
	}
}

func receiptFields(receipt parking.Receipt) []zap.Field {
	return []zap.Field{
		zap.String("kind", string(receipt.Kind)),
		zap.String("session_id", receipt.SessionID.String()),
		zap.String("lot_id", receipt.LotID.String()),
	}
}
