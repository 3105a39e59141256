package parking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the session lifecycle manager. It owns no state of its own:
// every admission and ledger change happens inside a Store transaction.
type Service struct {
	store           Store
	nowFn           func() time.Time
	logger          OperationLogger
	notifier        ReceiptNotifier
	conflictRetries int
	conflictBackoff time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:           store,
		nowFn:           now,
		conflictRetries: DefaultConflictRetries,
		conflictBackoff: conflictBackoffStep,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateSession admits the vehicle with the given plate into the lot for duration
// and bills the requesting account. Admission, session insert, vehicle placement,
// lot revenue and account debit commit together or not at all.
func (service *Service) CreateSession(ctx context.Context, accountID AccountID, lotID LotID, plate Plate, duration time.Duration, metadata MetadataJSON) (SessionReceipt, error) {
	var (
		receipt      SessionReceipt
		notification Receipt
		attempts     int
	)
	operationError := validateDuration(duration)
	if operationError == nil {
		attempts, operationError = service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			return service.admitAndBill(ctx, transactionStore, accountID, lotID, plate, duration, metadata, &receipt, &notification)
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateSession,
		AccountID: accountID,
		LotID:     lotID,
		SessionID: receipt.SessionID,
		Plate:     plate,
		Amount:    receipt.AmountCents,
		Attempts:  attempts,
		Error:     operationError,
	})
	if operationError != nil {
		return SessionReceipt{}, operationError
	}
	service.notify(ctx, notification)
	return receipt, nil
}

func validateDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidDuration, duration)
	}
	if duration > MaxSessionDuration {
		return fmt.Errorf("%w: duration %s exceeds %s", ErrInvalidDuration, duration, MaxSessionDuration)
	}
	return nil
}

func (service *Service) admitAndBill(ctx context.Context, transactionStore Store, accountID AccountID, lotID LotID, plate Plate, duration time.Duration, metadata MetadataJSON, receipt *SessionReceipt, notification *Receipt) error {
	*receipt = SessionReceipt{}
	lot, err := transactionStore.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	vehicle, err := transactionStore.GetVehicleByPlate(ctx, plate)
	if err != nil {
		return err
	}
	if vehicle.OwnerAccountID != accountID {
		return ErrVehicleNotOwned
	}
	account, err := transactionStore.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := transactionStore.AdmitVehicle(ctx, lot.ID); err != nil {
		return err
	}
	startsAt := service.now()
	endsAt := startsAt.Add(duration)
	amount, err := Price(startsAt, endsAt, lot.HourlyRateCents)
	if err != nil {
		return err
	}
	session, err := transactionStore.InsertSession(ctx, SessionInput{
		VehicleID:   vehicle.ID,
		LotID:       lot.ID,
		AccountID:   accountID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		AmountCents: amount,
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}
	if err := transactionStore.PlaceVehicle(ctx, vehicle.ID, lot.ID); err != nil {
		return err
	}
	if err := transactionStore.AddLotRevenue(ctx, lot.ID, amount); err != nil {
		return err
	}
	if err := transactionStore.DebitAccount(ctx, accountID, amount); err != nil {
		return err
	}
	*receipt = SessionReceipt{
		SessionID:   session.ID,
		LotID:       lot.ID,
		Plate:       vehicle.Plate,
		StartsAt:    session.StartsAt,
		EndsAt:      session.EndsAt,
		AmountCents: session.AmountCents,
	}
	*notification = newReceipt(ReceiptCreated, account, lot, vehicle.Plate, session)
	return nil
}

// inTransaction runs fn in a store transaction, re-running it while the store
// reports ErrWriteConflict and the retry budget lasts.
func (service *Service) inTransaction(ctx context.Context, fn func(ctx context.Context, transactionStore Store) error) (int, error) {
	for attempt := 1; ; attempt++ {
		err := service.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrWriteConflict) {
			return attempt, err
		}
		if attempt > service.conflictRetries {
			return attempt, WrapError(errorOperationService, errorSubjectTx, errorCodeRetries, err)
		}
		if waitErr := sleepContext(ctx, time.Duration(attempt)*service.conflictBackoff); waitErr != nil {
			return attempt, errors.Join(err, waitErr)
		}
	}
}

func sleepContext(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}

func (service *Service) notify(ctx context.Context, receipt Receipt) {
	if service.notifier == nil || receipt.SessionID.IsZero() {
		return
	}
	receipt.IssuedAt = service.now()
	service.notifier.NotifyReceipt(context.WithoutCancel(ctx), receipt)
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

func newReceipt(kind ReceiptKind, account Account, lot Lot, plate Plate, session Session) Receipt {
	return Receipt{
		Kind:         kind,
		AccountEmail: account.Email,
		SessionID:    session.ID,
		LotID:        lot.ID,
		LotName:      lot.Name,
		Plate:        plate,
		StartsAt:     session.StartsAt,
		EndsAt:       session.EndsAt,
		AmountCents:  session.AmountCents,
	}
}
