package parking

import (
	"context"
	"time"
)

// ReceiptKind tells the recipient what happened to the session.
type ReceiptKind string

const (
	ReceiptCreated ReceiptKind = "created"
	ReceiptRevised ReceiptKind = "revised"
	ReceiptClosed  ReceiptKind = "closed"
)

// Receipt is the summary sent to the customer once a session change is durable.
type Receipt struct {
	Kind         ReceiptKind
	AccountEmail string
	SessionID    SessionID
	LotID        LotID
	LotName      string
	Plate        Plate
	StartsAt     time.Time
	EndsAt       time.Time
	AmountCents  AmountCents
	IssuedAt     time.Time
}

// ReceiptNotifier receives receipts. Implementations must not block the caller
// and report delivery failures on their own.
type ReceiptNotifier interface {
	NotifyReceipt(ctx context.Context, receipt Receipt)
}
