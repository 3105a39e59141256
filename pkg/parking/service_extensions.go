package parking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CloseSession ends an active session and frees its space. Revenue and balance
// stay as billed. Closing an already closed session succeeds without effect.
func (service *Service) CloseSession(ctx context.Context, sessionID SessionID) error {
	var (
		session      Session
		notification Receipt
	)
	attempts, operationError := service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
		notification = Receipt{}
		var err error
		session, err = transactionStore.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == SessionStatusClosed {
			return nil
		}
		closedAt := service.now()
		err = transactionStore.CloseSession(ctx, sessionID, closedAt)
		if errors.Is(err, ErrSessionClosed) {
			// A concurrent close won the transition and released the space.
			return nil
		}
		if err != nil {
			return err
		}
		if err := transactionStore.ReleaseSpace(ctx, session.LotID); err != nil {
			return err
		}
		if err := transactionStore.ClearVehiclePlacement(ctx, session.VehicleID); err != nil {
			return err
		}
		session.Status = SessionStatusClosed
		session.ClosedAt = &closedAt
		notification, err = service.describeSession(ctx, transactionStore, ReceiptClosed, session)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCloseSession,
		AccountID: session.AccountID,
		LotID:     session.LotID,
		SessionID: sessionID,
		Plate:     notification.Plate,
		Attempts:  attempts,
		Error:     operationError,
	})
	if operationError != nil {
		return operationError
	}
	service.notify(ctx, notification)
	return nil
}

// ReviseSessionEnd moves the end of an active session and re-bills it from its start.
// The price difference is credited to the lot and debited from the account; the
// balance may go negative here. Occupancy is not re-checked.
func (service *Service) ReviseSessionEnd(ctx context.Context, sessionID SessionID, newEndsAt time.Time) (SessionReceipt, error) {
	var (
		receipt      SessionReceipt
		notification Receipt
		delta        AmountCents
		accountID    AccountID
		lotID        LotID
	)
	newEndsAt = newEndsAt.UTC()
	attempts, operationError := service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
		receipt = SessionReceipt{}
		session, err := transactionStore.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		accountID = session.AccountID
		lotID = session.LotID
		if session.Status != SessionStatusActive {
			return ErrSessionClosed
		}
		if !newEndsAt.After(session.StartsAt) {
			return fmt.Errorf("%w: new end must be after session start", ErrInvalidDuration)
		}
		lot, err := transactionStore.GetLot(ctx, session.LotID)
		if err != nil {
			return err
		}
		newAmount, err := Price(session.StartsAt, newEndsAt, lot.HourlyRateCents)
		if err != nil {
			return err
		}
		delta = newAmount - session.AmountCents
		if err := transactionStore.UpdateSessionWindow(ctx, SessionWindowUpdate{
			SessionID:           session.ID,
			ExpectedEndsAt:      session.EndsAt,
			ExpectedAmountCents: session.AmountCents,
			EndsAt:              newEndsAt,
			AmountCents:         newAmount,
		}); err != nil {
			return err
		}
		if delta != 0 {
			if err := transactionStore.AddLotRevenue(ctx, session.LotID, delta); err != nil {
				return err
			}
			if err := transactionStore.AdjustAccountBalance(ctx, session.AccountID, delta.Negated()); err != nil {
				return err
			}
		}
		session.EndsAt = newEndsAt
		session.AmountCents = newAmount
		notification, err = service.describeSession(ctx, transactionStore, ReceiptRevised, session)
		if err != nil {
			return err
		}
		receipt = SessionReceipt{
			SessionID:   session.ID,
			LotID:       session.LotID,
			Plate:       notification.Plate,
			StartsAt:    session.StartsAt,
			EndsAt:      session.EndsAt,
			AmountCents: session.AmountCents,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReviseSession,
		AccountID: accountID,
		LotID:     lotID,
		SessionID: sessionID,
		Plate:     receipt.Plate,
		Amount:    delta,
		Attempts:  attempts,
		Error:     operationError,
	})
	if operationError != nil {
		return SessionReceipt{}, operationError
	}
	service.notify(ctx, notification)
	return receipt, nil
}

// TopUp credits an account. It is the only balance change not paired with lot revenue.
func (service *Service) TopUp(ctx context.Context, accountID AccountID, amount AmountCents) (Account, error) {
	var (
		account  Account
		attempts int
	)
	operationError := validateTopUp(amount)
	if operationError == nil {
		attempts, operationError = service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			return service.creditAccount(ctx, transactionStore, accountID, amount, &account)
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationTopUp,
		AccountID: accountID,
		Amount:    amount,
		Attempts:  attempts,
		Error:     operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

func validateTopUp(amount AmountCents) error {
	if amount <= 0 {
		return fmt.Errorf("%w: top up must be positive", ErrInvalidAmountCents)
	}
	return nil
}

func (service *Service) creditAccount(ctx context.Context, transactionStore Store, accountID AccountID, amount AmountCents, account *Account) error {
	if _, err := transactionStore.GetAccount(ctx, accountID); err != nil {
		return err
	}
	if err := transactionStore.AdjustAccountBalance(ctx, accountID, amount); err != nil {
		return err
	}
	updated, err := transactionStore.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	*account = updated
	return nil
}

// GetSession returns a session by id.
func (service *Service) GetSession(ctx context.Context, sessionID SessionID) (Session, error) {
	return service.store.GetSession(ctx, sessionID)
}

// GetLot returns a lot with its current occupancy and revenue.
func (service *Service) GetLot(ctx context.Context, lotID LotID) (Lot, error) {
	return service.store.GetLot(ctx, lotID)
}

// ListLots returns every published lot.
func (service *Service) ListLots(ctx context.Context) ([]Lot, error) {
	return service.store.ListLots(ctx)
}

// ListLotSessions returns the sessions of one lot, active and closed.
func (service *Service) ListLotSessions(ctx context.Context, lotID LotID) ([]Session, error) {
	if _, err := service.store.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return service.store.ListLotSessions(ctx, lotID)
}

// GetAccount returns an account with its current balance.
func (service *Service) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	return service.store.GetAccount(ctx, accountID)
}

func (service *Service) describeSession(ctx context.Context, transactionStore Store, kind ReceiptKind, session Session) (Receipt, error) {
	lot, err := transactionStore.GetLot(ctx, session.LotID)
	if err != nil {
		return Receipt{}, err
	}
	vehicle, err := transactionStore.GetVehicle(ctx, session.VehicleID)
	if err != nil {
		return Receipt{}, err
	}
	account, err := transactionStore.GetAccount(ctx, session.AccountID)
	if err != nil {
		return Receipt{}, err
	}
	return newReceipt(kind, account, lot, vehicle.Plate, session), nil
}
