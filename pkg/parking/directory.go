package parking

import (
	"context"
	"fmt"
	"strings"
)

// OpenAccount creates an account with a zero balance.
func (service *Service) OpenAccount(ctx context.Context, accountID AccountID, role Role, email string) (Account, error) {
	var account Account
	operationError := func() error {
		if _, err := ParseRole(role.String()); err != nil {
			return err
		}
		normalizedEmail, err := validateEmail(email)
		if err != nil {
			return err
		}
		account, err = service.store.InsertAccount(ctx, NewAccountInput{ID: accountID, Role: role, Email: normalizedEmail})
		return err
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationOpenAccount,
		AccountID: accountID,
		Error:     operationError,
	})
	return account, operationError
}

// PublishLot registers a lot owned by an owner account.
func (service *Service) PublishLot(ctx context.Context, ownerID AccountID, name string, totalSpaces int, rate HourlyRateCents) (Lot, error) {
	var lot Lot
	_, operationError := service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
		trimmedName := strings.TrimSpace(name)
		if trimmedName == "" {
			return fmt.Errorf("%w: empty value", ErrInvalidLotName)
		}
		if totalSpaces <= 0 {
			return fmt.Errorf("%w: must be positive, got %d", ErrInvalidSpaces, totalSpaces)
		}
		if err := validateHourlyRate(rate.Int64()); err != nil {
			return err
		}
		owner, err := transactionStore.GetAccount(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.Role != RoleOwner {
			return fmt.Errorf("%w: only owners publish lots", ErrForbidden)
		}
		lot, err = transactionStore.InsertLot(ctx, NewLotInput{
			OwnerAccountID:  ownerID,
			Name:            trimmedName,
			TotalSpaces:     totalSpaces,
			HourlyRateCents: rate,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationPublishLot,
		AccountID: ownerID,
		LotID:     lot.ID,
		Error:     operationError,
	})
	return lot, operationError
}

// RegisterVehicle attaches a plate to a customer account. Plates are unique.
func (service *Service) RegisterVehicle(ctx context.Context, ownerID AccountID, plate Plate) (Vehicle, error) {
	var vehicle Vehicle
	_, operationError := service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
		owner, err := transactionStore.GetAccount(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner.Role != RoleCustomer {
			return fmt.Errorf("%w: only customers register vehicles", ErrForbidden)
		}
		vehicle, err = transactionStore.InsertVehicle(ctx, NewVehicleInput{OwnerAccountID: ownerID, Plate: plate})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRegisterVehicle,
		AccountID: ownerID,
		Plate:     plate,
		Error:     operationError,
	})
	return vehicle, operationError
}
