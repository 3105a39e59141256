package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMetadataJSON = "{}"

	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	sqliteBusyCode             = 5
	sqliteLockedCode           = 6
	sqliteConstraintCode       = 19
	mysqlDuplicateEntryCode    = 1062
	mysqlLockWaitTimeoutCode   = 1205
	mysqlDeadlockCode          = 1213

	errorOperationStore = "store"
	errorSubjectAccount = "account"
	errorSubjectLot     = "lot"
	errorSubjectVehicle = "vehicle"
	errorSubjectSession = "session"
	errorSubjectTx      = "transaction"
	errorSubjectWarden  = "warden"
	errorCodeCommit     = "commit"
	errorCodeAdjust     = "adjust"
	errorCodeAdmit      = "admit"
	errorCodeAssign     = "assign"
	errorCodeClose      = "close"
	errorCodeDebit      = "debit"
	errorCodeGet        = "get"
	errorCodeInsert     = "insert"
	errorCodeInvalid    = "invalid"
	errorCodeList       = "list"
	errorCodePlace      = "place"
	errorCodeRelease    = "release"
	errorCodeRevenue    = "revenue"
	errorCodeUpdate     = "update"
)

// Store implements parking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore parking.Store) error) error {
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
	if isWriteConflict(err) && !errors.Is(err, parking.ErrWriteConflict) {
		return wrapStoreError(errorSubjectTx, errorCodeCommit, errors.Join(parking.ErrWriteConflict, err))
	}
	return err
}

func (store *Store) GetLot(ctx context.Context, lotID parking.LotID) (parking.Lot, error) {
	var model Lot
	err := store.db.WithContext(ctx).Where("lot_id = ?", lotID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, parking.ErrUnknownLot)
		}
		return parking.Lot{}, wrapDriverError(errorSubjectLot, errorCodeGet, err)
	}
	lot, err := mapLot(model)
	if err != nil {
		return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return lot, nil
}

func (store *Store) AdmitVehicle(ctx context.Context, lotID parking.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&Lot{}).
		Where("lot_id = ? AND occupied_spaces < total_spaces", lotID.String()).
		UpdateColumn("occupied_spaces", gorm.Expr("occupied_spaces + ?", 1))
	if result.Error != nil {
		return wrapDriverError(errorSubjectLot, errorCodeAdmit, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	exists, err := store.lotExists(ctx, lotID)
	if err != nil {
		return wrapDriverError(errorSubjectLot, errorCodeAdmit, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectLot, errorCodeAdmit, parking.ErrUnknownLot)
	}
	return wrapStoreError(errorSubjectLot, errorCodeAdmit, parking.ErrLotFull)
}

func (store *Store) ReleaseSpace(ctx context.Context, lotID parking.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&Lot{}).
		Where("lot_id = ? AND occupied_spaces > 0", lotID.String()).
		UpdateColumn("occupied_spaces", gorm.Expr("occupied_spaces - ?", 1))
	if result.Error != nil {
		return wrapDriverError(errorSubjectLot, errorCodeRelease, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return store.requireLot(ctx, lotID, errorCodeRelease)
}

func (store *Store) AddLotRevenue(ctx context.Context, lotID parking.LotID, delta parking.AmountCents) error {
	result := store.db.WithContext(ctx).
		Model(&Lot{}).
		Where("lot_id = ?", lotID.String()).
		UpdateColumn("revenue_cents", gorm.Expr("revenue_cents + ?", delta.Int64()))
	if result.Error != nil {
		return wrapDriverError(errorSubjectLot, errorCodeRevenue, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return store.requireLot(ctx, lotID, errorCodeRevenue)
}

func (store *Store) InsertLot(ctx context.Context, input parking.NewLotInput) (parking.Lot, error) {
	model := Lot{
		OwnerAccountID:  input.OwnerAccountID.String(),
		Name:            input.Name,
		TotalSpaces:     input.TotalSpaces,
		HourlyRateCents: input.HourlyRateCents.Int64(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return parking.Lot{}, wrapDriverError(errorSubjectLot, errorCodeInsert, err)
	}
	lot, err := mapLot(model)
	if err != nil {
		return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return lot, nil
}

func (store *Store) ListLots(ctx context.Context) ([]parking.Lot, error) {
	var models []Lot
	if err := store.db.WithContext(ctx).Order("name, lot_id").Find(&models).Error; err != nil {
		return nil, wrapDriverError(errorSubjectLot, errorCodeList, err)
	}
	lots := make([]parking.Lot, 0, len(models))
	for _, model := range models {
		lot, err := mapLot(model)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

func (store *Store) ListLotSessions(ctx context.Context, lotID parking.LotID) ([]parking.Session, error) {
	var models []Session
	err := store.db.WithContext(ctx).
		Where("lot_id = ?", lotID.String()).
		Order("starts_at, session_id").
		Find(&models).Error
	if err != nil {
		return nil, wrapDriverError(errorSubjectSession, errorCodeList, err)
	}
	sessions := make([]parking.Session, 0, len(models))
	for _, model := range models {
		session, err := mapSession(model)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (store *Store) AssignWarden(ctx context.Context, lotID parking.LotID, wardenID parking.AccountID) error {
	model := WardenAssignment{
		LotID:     lotID.String(),
		AccountID: wardenID.String(),
		CreatedAt: time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
	if err != nil {
		return wrapDriverError(errorSubjectWarden, errorCodeAssign, err)
	}
	return nil
}

func (store *Store) ListLotWardens(ctx context.Context, lotID parking.LotID) ([]parking.AccountID, error) {
	var rawIDs []string
	err := store.db.WithContext(ctx).
		Model(&WardenAssignment{}).
		Where("lot_id = ?", lotID.String()).
		Order("account_id").
		Pluck("account_id", &rawIDs).Error
	if err != nil {
		return nil, wrapDriverError(errorSubjectWarden, errorCodeList, err)
	}
	wardens := make([]parking.AccountID, 0, len(rawIDs))
	for _, rawID := range rawIDs {
		wardenID, err := parking.NewAccountID(rawID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectWarden, errorCodeInvalid, err)
		}
		wardens = append(wardens, wardenID)
	}
	return wardens, nil
}

func (store *Store) IsWardenAssigned(ctx context.Context, lotID parking.LotID, wardenID parking.AccountID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&WardenAssignment{}).
		Where("lot_id = ? AND account_id = ?", lotID.String(), wardenID.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapDriverError(errorSubjectWarden, errorCodeGet, err)
	}
	return count > 0, nil
}

func (store *Store) GetVehicleByPlate(ctx context.Context, plate parking.Plate) (parking.Vehicle, error) {
	return store.getVehicle(ctx, "plate = ?", plate.String())
}

func (store *Store) GetVehicle(ctx context.Context, vehicleID parking.VehicleID) (parking.Vehicle, error) {
	return store.getVehicle(ctx, "vehicle_id = ?", vehicleID.String())
}

func (store *Store) getVehicle(ctx context.Context, condition string, value string) (parking.Vehicle, error) {
	var model Vehicle
	err := store.db.WithContext(ctx).Where(condition, value).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, parking.ErrUnknownVehicle)
		}
		return parking.Vehicle{}, wrapDriverError(errorSubjectVehicle, errorCodeGet, err)
	}
	vehicle, err := mapVehicle(model)
	if err != nil {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
	}
	return vehicle, nil
}

func (store *Store) PlaceVehicle(ctx context.Context, vehicleID parking.VehicleID, lotID parking.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&Vehicle{}).
		Where("vehicle_id = ? AND current_lot_id IS NULL", vehicleID.String()).
		UpdateColumn("current_lot_id", lotID.String())
	if result.Error != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := store.db.WithContext(ctx).Model(&Vehicle{}).Where("vehicle_id = ?", vehicleID.String()).Count(&count).Error; err != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodePlace, parking.ErrUnknownVehicle)
	}
	return wrapStoreError(errorSubjectVehicle, errorCodePlace, parking.ErrVehicleParked)
}

func (store *Store) ClearVehiclePlacement(ctx context.Context, vehicleID parking.VehicleID) error {
	result := store.db.WithContext(ctx).
		Model(&Vehicle{}).
		Where("vehicle_id = ?", vehicleID.String()).
		UpdateColumn("current_lot_id", gorm.Expr("NULL"))
	if result.Error != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := store.GetVehicle(ctx, vehicleID); err != nil {
		return err
	}
	return nil
}

func (store *Store) InsertVehicle(ctx context.Context, input parking.NewVehicleInput) (parking.Vehicle, error) {
	model := Vehicle{
		Plate:          input.Plate.String(),
		OwnerAccountID: input.OwnerAccountID.String(),
		CreatedAt:      time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInsert, parking.ErrPlateTaken)
	}
	if err != nil {
		return parking.Vehicle{}, wrapDriverError(errorSubjectVehicle, errorCodeInsert, err)
	}
	vehicle, err := mapVehicle(model)
	if err != nil {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
	}
	return vehicle, nil
}

func (store *Store) GetAccount(ctx context.Context, accountID parking.AccountID) (parking.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, parking.ErrUnknownAccount)
		}
		return parking.Account{}, wrapDriverError(errorSubjectAccount, errorCodeGet, err)
	}
	account, err := mapAccount(model)
	if err != nil {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

func (store *Store) DebitAccount(ctx context.Context, accountID parking.AccountID, amount parking.AmountCents) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND balance_cents >= ?", accountID.String(), amount.Int64()).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents - ?", amount.Int64()))
	if result.Error != nil {
		return wrapDriverError(errorSubjectAccount, errorCodeDebit, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	account, err := store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.BalanceCents < amount {
		return wrapStoreError(errorSubjectAccount, errorCodeDebit, parking.ErrInsufficientFunds)
	}
	// Zero-amount debits change nothing, which some drivers report as no affected rows.
	return nil
}

func (store *Store) AdjustAccountBalance(ctx context.Context, accountID parking.AccountID, delta parking.AmountCents) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ?", accountID.String()).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents + ?", delta.Int64()))
	if result.Error != nil {
		return wrapDriverError(errorSubjectAccount, errorCodeAdjust, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := store.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return nil
}

func (store *Store) InsertAccount(ctx context.Context, input parking.NewAccountInput) (parking.Account, error) {
	model := Account{
		AccountID: input.ID.String(),
		Role:      input.Role.String(),
		Email:     input.Email,
		CreatedAt: time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInsert, parking.ErrAccountExists)
	}
	if err != nil {
		return parking.Account{}, wrapDriverError(errorSubjectAccount, errorCodeInsert, err)
	}
	account, err := mapAccount(model)
	if err != nil {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

func (store *Store) InsertSession(ctx context.Context, input parking.SessionInput) (parking.Session, error) {
	model := Session{
		VehicleID:   input.VehicleID.String(),
		LotID:       input.LotID.String(),
		AccountID:   input.AccountID.String(),
		Status:      parking.SessionStatusActive.String(),
		StartsAt:    storedTime(input.StartsAt),
		EndsAt:      storedTime(input.EndsAt),
		AmountCents: input.AmountCents.Int64(),
		Metadata:    datatypesJSON(input.Metadata.String()),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return parking.Session{}, wrapDriverError(errorSubjectSession, errorCodeInsert, err)
	}
	session, err := mapSession(model)
	if err != nil {
		return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return session, nil
}

func (store *Store) GetSession(ctx context.Context, sessionID parking.SessionID) (parking.Session, error) {
	var model Session
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeGet, parking.ErrUnknownSession)
		}
		return parking.Session{}, wrapDriverError(errorSubjectSession, errorCodeGet, err)
	}
	session, err := mapSession(model)
	if err != nil {
		return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return session, nil
}

func (store *Store) UpdateSessionWindow(ctx context.Context, update parking.SessionWindowUpdate) error {
	endsAt := storedTime(update.EndsAt)
	result := store.db.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ? AND status = ? AND ends_at = ? AND amount_cents = ?",
			update.SessionID.String(),
			parking.SessionStatusActive.String(),
			storedTime(update.ExpectedEndsAt),
			update.ExpectedAmountCents.Int64(),
		).
		UpdateColumns(map[string]any{
			"ends_at":      endsAt,
			"amount_cents": update.AmountCents.Int64(),
		})
	if result.Error != nil {
		return wrapDriverError(errorSubjectSession, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	current, err := store.GetSession(ctx, update.SessionID)
	if err != nil {
		return err
	}
	if current.Status == parking.SessionStatusActive && current.EndsAt.Equal(endsAt) && current.AmountCents == update.AmountCents {
		return nil
	}
	return wrapStoreError(errorSubjectSession, errorCodeUpdate, parking.ErrWriteConflict)
}

func (store *Store) CloseSession(ctx context.Context, sessionID parking.SessionID, closedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ? AND status = ?", sessionID.String(), parking.SessionStatusActive.String()).
		UpdateColumns(map[string]any{
			"status":    parking.SessionStatusClosed.String(),
			"closed_at": storedTime(closedAt),
		})
	if result.Error != nil {
		return wrapDriverError(errorSubjectSession, errorCodeClose, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := store.db.WithContext(ctx).Model(&Session{}).Where("session_id = ?", sessionID.String()).Count(&count).Error; err != nil {
		return wrapDriverError(errorSubjectSession, errorCodeClose, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectSession, errorCodeClose, parking.ErrUnknownSession)
	}
	return wrapStoreError(errorSubjectSession, errorCodeClose, parking.ErrSessionClosed)
}

func (store *Store) lotExists(ctx context.Context, lotID parking.LotID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Lot{}).Where("lot_id = ?", lotID.String()).Count(&count).Error
	return count > 0, err
}

func (store *Store) requireLot(ctx context.Context, lotID parking.LotID, code string) error {
	exists, err := store.lotExists(ctx, lotID)
	if err != nil {
		return wrapDriverError(errorSubjectLot, code, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectLot, code, parking.ErrUnknownLot)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return parking.WrapError(errorOperationStore, subject, code, err)
}

// wrapDriverError classifies a raw driver failure as a write conflict or an unavailable store.
func wrapDriverError(subject string, code string, err error) error {
	if isWriteConflict(err) {
		return wrapStoreError(subject, code, errors.Join(parking.ErrWriteConflict, err))
	}
	return wrapStoreError(subject, code, parking.Unavailable(err))
}

// storedTime drops precision the databases cannot keep so optimistic comparisons round-trip.
func storedTime(value time.Time) time.Time {
	return value.UTC().Truncate(time.Microsecond)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntryCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlockCode || mysqlErr.Number == mysqlLockWaitTimeoutCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xFF
		return primary == sqliteBusyCode || primary == sqliteLockedCode
	}
	return false
}

func mapAccount(model Account) (parking.Account, error) {
	accountID, err := parking.NewAccountID(model.AccountID)
	if err != nil {
		return parking.Account{}, err
	}
	role, err := parking.ParseRole(model.Role)
	if err != nil {
		return parking.Account{}, err
	}
	return parking.Account{
		ID:           accountID,
		Role:         role,
		Email:        model.Email,
		BalanceCents: parking.AmountCents(model.BalanceCents),
	}, nil
}

func mapLot(model Lot) (parking.Lot, error) {
	lotID, err := parking.NewLotID(model.LotID)
	if err != nil {
		return parking.Lot{}, err
	}
	ownerID, err := parking.NewAccountID(model.OwnerAccountID)
	if err != nil {
		return parking.Lot{}, err
	}
	rate, err := parking.NewHourlyRateCents(model.HourlyRateCents)
	if err != nil {
		return parking.Lot{}, err
	}
	return parking.Lot{
		ID:              lotID,
		OwnerAccountID:  ownerID,
		Name:            model.Name,
		TotalSpaces:     model.TotalSpaces,
		OccupiedSpaces:  model.OccupiedSpaces,
		HourlyRateCents: rate,
		RevenueCents:    parking.AmountCents(model.RevenueCents),
	}, nil
}

func mapVehicle(model Vehicle) (parking.Vehicle, error) {
	vehicleID, err := parking.NewVehicleID(model.VehicleID)
	if err != nil {
		return parking.Vehicle{}, err
	}
	plate, err := parking.NewPlate(model.Plate)
	if err != nil {
		return parking.Vehicle{}, err
	}
	ownerID, err := parking.NewAccountID(model.OwnerAccountID)
	if err != nil {
		return parking.Vehicle{}, err
	}
	vehicle := parking.Vehicle{ID: vehicleID, Plate: plate, OwnerAccountID: ownerID}
	if model.CurrentLotID != nil {
		lotID, err := parking.NewLotID(*model.CurrentLotID)
		if err != nil {
			return parking.Vehicle{}, err
		}
		vehicle.CurrentLotID = &lotID
	}
	return vehicle, nil
}

func mapSession(model Session) (parking.Session, error) {
	sessionID, err := parking.NewSessionID(model.SessionID)
	if err != nil {
		return parking.Session{}, err
	}
	vehicleID, err := parking.NewVehicleID(model.VehicleID)
	if err != nil {
		return parking.Session{}, err
	}
	lotID, err := parking.NewLotID(model.LotID)
	if err != nil {
		return parking.Session{}, err
	}
	accountID, err := parking.NewAccountID(model.AccountID)
	if err != nil {
		return parking.Session{}, err
	}
	status, err := parking.ParseSessionStatus(model.Status)
	if err != nil {
		return parking.Session{}, err
	}
	metadata, err := parking.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return parking.Session{}, err
	}
	session := parking.Session{
		ID:          sessionID,
		VehicleID:   vehicleID,
		LotID:       lotID,
		AccountID:   accountID,
		StartsAt:    model.StartsAt.UTC(),
		EndsAt:      model.EndsAt.UTC(),
		AmountCents: parking.AmountCents(model.AmountCents),
		Status:      status,
		Metadata:    metadata,
	}
	if model.ClosedAt != nil {
		closedAt := model.ClosedAt.UTC()
		session.ClosedAt = &closedAt
	}
	return session, nil
}
