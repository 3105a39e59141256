package parking

import (
	"context"
	"fmt"
)

// AssignWarden lets the owner of a lot put a warden account on patrol there.
func (service *Service) AssignWarden(ctx context.Context, ownerID AccountID, lotID LotID, wardenID AccountID) error {
	_, operationError := service.inTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
		lot, err := transactionStore.GetLot(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.OwnerAccountID != ownerID {
			return fmt.Errorf("%w: only the lot owner assigns wardens", ErrForbidden)
		}
		warden, err := transactionStore.GetAccount(ctx, wardenID)
		if err != nil {
			return err
		}
		if warden.Role != RoleWarden {
			return fmt.Errorf("%w: account %s is a %s", ErrInvalidRole, wardenID, warden.Role)
		}
		return transactionStore.AssignWarden(ctx, lotID, wardenID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAssignWarden,
		AccountID: wardenID,
		LotID:     lotID,
		Error:     operationError,
	})
	return operationError
}

// LotWardens lists the wardens assigned to a lot.
func (service *Service) LotWardens(ctx context.Context, lotID LotID) ([]AccountID, error) {
	if _, err := service.store.GetLot(ctx, lotID); err != nil {
		return nil, err
	}
	return service.store.ListLotWardens(ctx, lotID)
}

// IsWardenOf reports whether the warden is assigned to the lot.
func (service *Service) IsWardenOf(ctx context.Context, wardenID AccountID, lotID LotID) (bool, error) {
	return service.store.IsWardenAssigned(ctx, lotID, wardenID)
}
