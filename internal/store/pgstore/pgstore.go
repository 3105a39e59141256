package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"

	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectLot         = "lot"
	errorSubjectVehicle     = "vehicle"
	errorSubjectSession     = "session"
	errorSubjectTransaction = "transaction"
	errorSubjectWarden      = "warden"
	errorCodeAdjust         = "adjust"
	errorCodeAdmit          = "admit"
	errorCodeAssign         = "assign"
	errorCodeBegin          = "begin"
	errorCodeClose          = "close"
	errorCodeCommit         = "commit"
	errorCodeDebit          = "debit"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodePlace          = "place"
	errorCodeRelease        = "release"
	errorCodeRevenue        = "revenue"
	errorCodeUpdate         = "update"

	sqlSelectLot = `
		select lot_id, owner_account_id, name, total_spaces, occupied_spaces, hourly_rate_cents, revenue_cents
		from lots where lot_id = $1
	`
	sqlListLots = `
		select lot_id, owner_account_id, name, total_spaces, occupied_spaces, hourly_rate_cents, revenue_cents
		from lots order by name, lot_id
	`
	sqlLotExists = `select exists(select 1 from lots where lot_id = $1)`
	sqlAdmit     = `
		update lots set occupied_spaces = occupied_spaces + 1
		where lot_id = $1 and occupied_spaces < total_spaces
	`
	sqlRelease = `
		update lots set occupied_spaces = occupied_spaces - 1
		where lot_id = $1 and occupied_spaces > 0
	`
	sqlAddRevenue = `update lots set revenue_cents = revenue_cents + $2 where lot_id = $1`
	sqlInsertLot  = `
		insert into lots(lot_id, owner_account_id, name, total_spaces, occupied_spaces, hourly_rate_cents, revenue_cents, created_at)
		values ($1, $2, $3, $4, 0, $5, 0, now())
	`

	sqlSelectVehicleByPlate = `
		select vehicle_id, plate, owner_account_id, current_lot_id from vehicles where plate = $1
	`
	sqlSelectVehicle = `
		select vehicle_id, plate, owner_account_id, current_lot_id from vehicles where vehicle_id = $1
	`
	sqlVehicleExists = `select exists(select 1 from vehicles where vehicle_id = $1)`
	sqlPlaceVehicle  = `
		update vehicles set current_lot_id = $2
		where vehicle_id = $1 and current_lot_id is null
	`
	sqlClearVehicle   = `update vehicles set current_lot_id = null where vehicle_id = $1`
	sqlInsertVehicle  = `insert into vehicles(vehicle_id, plate, owner_account_id, created_at) values ($1, $2, $3, now())`
	sqlSelectAccount  = `select account_id, role, email, balance_cents from accounts where account_id = $1`
	sqlAccountBalance = `select balance_cents from accounts where account_id = $1`
	sqlDebitAccount   = `
		update accounts set balance_cents = balance_cents - $2
		where account_id = $1 and balance_cents >= $2
	`
	sqlAdjustAccount = `update accounts set balance_cents = balance_cents + $2 where account_id = $1`
	sqlInsertAccount = `
		insert into accounts(account_id, role, email, balance_cents, created_at) values ($1, $2, $3, 0, now())
	`

	sqlInsertSession = `
		insert into parking_sessions(
			session_id, vehicle_id, lot_id, account_id, status, starts_at, ends_at, amount_cents, metadata, created_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, coalesce(nullif($9,''),'{}')::jsonb, now())
	`
	sqlSelectSession = `
		select session_id, vehicle_id, lot_id, account_id, status, starts_at, ends_at, amount_cents,
			coalesce(metadata::text,'{}'), closed_at
		from parking_sessions
		where session_id = $1
		for update
	`
	sqlListLotSessions = `
		select session_id, vehicle_id, lot_id, account_id, status, starts_at, ends_at, amount_cents,
			coalesce(metadata::text,'{}'), closed_at
		from parking_sessions
		where lot_id = $1
		order by starts_at, session_id
	`
	sqlSessionExists     = `select exists(select 1 from parking_sessions where session_id = $1)`
	sqlUpdateSessionSpan = `
		update parking_sessions set ends_at = $5, amount_cents = $6
		where session_id = $1 and status = $2 and ends_at = $3 and amount_cents = $4
	`
	sqlCloseSession = `
		update parking_sessions set status = $3, closed_at = $4
		where session_id = $1 and status = $2
	`
)

const (
	sqlAssignWarden = `
		insert into lot_wardens(lot_id, account_id, created_at) values ($1, $2, now())
		on conflict (lot_id, account_id) do nothing
	`
	sqlListLotWardens = `select account_id from lot_wardens where lot_id = $1 order by account_id`
	sqlWardenAssigned = `select exists(select 1 from lot_wardens where lot_id = $1 and account_id = $2)`
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements parking.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements parking.Store for an active transaction.
type TxStore struct {
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// WithTx runs fn in a transaction and commits when it returns nil.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore parking.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapDriverError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &TxStore{queries: queries{db: tx}}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapDriverError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx reuses the open transaction.
func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore parking.Store) error) error {
	return fn(ctx, store)
}

type queries struct {
	db querier
}

func (store queries) GetLot(ctx context.Context, lotID parking.LotID) (parking.Lot, error) {
	var row lotRow
	err := store.db.QueryRow(ctx, sqlSelectLot, lotID.String()).Scan(
		&row.lotID, &row.ownerAccountID, &row.name, &row.totalSpaces, &row.occupiedSpaces, &row.hourlyRateCents, &row.revenueCents,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, parking.ErrUnknownLot)
	}
	if err != nil {
		return parking.Lot{}, wrapDriverError(errorSubjectLot, errorCodeGet, err)
	}
	lot, err := row.toDomain()
	if err != nil {
		return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return lot, nil
}

func (store queries) AdmitVehicle(ctx context.Context, lotID parking.LotID) error {
	tag, err := store.db.Exec(ctx, sqlAdmit, lotID.String())
	if err != nil {
		return wrapDriverError(errorSubjectLot, errorCodeAdmit, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	exists, err := store.exists(ctx, sqlLotExists, lotID.String())
	if err != nil {
		return wrapDriverError(errorSubjectLot, errorCodeAdmit, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectLot, errorCodeAdmit, parking.ErrUnknownLot)
	}
	return wrapStoreError(errorSubjectLot, errorCodeAdmit, parking.ErrLotFull)
}

func (store queries) ReleaseSpace(ctx context.Context, lotID parking.LotID) error {
	tag, err := store.db.Exec(ctx, sqlRelease, lotID.String())
	if err != nil {
		return wrapDriverError(errorSubjectLot, errorCodeRelease, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return store.requireRow(ctx, sqlLotExists, lotID.String(), errorSubjectLot, errorCodeRelease, parking.ErrUnknownLot)
}

func (store queries) AddLotRevenue(ctx context.Context, lotID parking.LotID, delta parking.AmountCents) error {
	tag, err := store.db.Exec(ctx, sqlAddRevenue, lotID.String(), delta.Int64())
	if err != nil {
		return wrapDriverError(errorSubjectLot, errorCodeRevenue, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeRevenue, parking.ErrUnknownLot)
	}
	return nil
}

func (store queries) InsertLot(ctx context.Context, input parking.NewLotInput) (parking.Lot, error) {
	lotIDValue := uuid.NewString()
	_, err := store.db.Exec(ctx, sqlInsertLot, lotIDValue, input.OwnerAccountID.String(), input.Name, input.TotalSpaces, input.HourlyRateCents.Int64())
	if err != nil {
		return parking.Lot{}, wrapDriverError(errorSubjectLot, errorCodeInsert, err)
	}
	lotID, err := parking.NewLotID(lotIDValue)
	if err != nil {
		return parking.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return parking.Lot{
		ID:              lotID,
		OwnerAccountID:  input.OwnerAccountID,
		Name:            input.Name,
		TotalSpaces:     input.TotalSpaces,
		HourlyRateCents: input.HourlyRateCents,
	}, nil
}

func (store queries) ListLots(ctx context.Context) ([]parking.Lot, error) {
	rows, err := store.db.Query(ctx, sqlListLots)
	if err != nil {
		return nil, wrapDriverError(errorSubjectLot, errorCodeList, err)
	}
	defer rows.Close()
	lots := make([]parking.Lot, 0)
	for rows.Next() {
		var row lotRow
		if err := rows.Scan(
			&row.lotID, &row.ownerAccountID, &row.name, &row.totalSpaces, &row.occupiedSpaces, &row.hourlyRateCents, &row.revenueCents,
		); err != nil {
			return nil, wrapDriverError(errorSubjectLot, errorCodeList, err)
		}
		lot, err := row.toDomain()
		if err != nil {
			return nil, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverError(errorSubjectLot, errorCodeList, err)
	}
	return lots, nil
}

func (store queries) ListLotSessions(ctx context.Context, lotID parking.LotID) ([]parking.Session, error) {
	rows, err := store.db.Query(ctx, sqlListLotSessions, lotID.String())
	if err != nil {
		return nil, wrapDriverError(errorSubjectSession, errorCodeList, err)
	}
	defer rows.Close()
	sessions := make([]parking.Session, 0)
	for rows.Next() {
		var row sessionRow
		if err := rows.Scan(
			&row.sessionID, &row.vehicleID, &row.lotID, &row.accountID, &row.status,
			&row.startsAt, &row.endsAt, &row.amountCents, &row.metadata, &row.closedAt,
		); err != nil {
			return nil, wrapDriverError(errorSubjectSession, errorCodeList, err)
		}
		session, err := row.toDomain()
		if err != nil {
			return nil, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDriverError(errorSubjectSession, errorCodeList, err)
	}
	return sessions, nil
}

func (store queries) AssignWarden(ctx context.Context, lotID parking.LotID, wardenID parking.AccountID) error {
	if _, err := store.db.Exec(ctx, sqlAssignWarden, lotID.String(), wardenID.String()); err != nil {
		return wrapDriverError(errorSubjectWarden, errorCodeAssign, err)
	}
	return nil
}

func (store queries) ListLotWardens(ctx context.Context, lotID parking.LotID) ([]parking.AccountID, error) {
	rows, err := store.db.Query(ctx, sqlListLotWardens, lotID.String())
	if err != nil {
		return nil, wrapDriverError(errorSubjectWarden, errorCodeList, err)
	}
	rawIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
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

func (store queries) IsWardenAssigned(ctx context.Context, lotID parking.LotID, wardenID parking.AccountID) (bool, error) {
	var assigned bool
	if err := store.db.QueryRow(ctx, sqlWardenAssigned, lotID.String(), wardenID.String()).Scan(&assigned); err != nil {
		return false, wrapDriverError(errorSubjectWarden, errorCodeGet, err)
	}
	return assigned, nil
}

func (store queries) GetVehicleByPlate(ctx context.Context, plate parking.Plate) (parking.Vehicle, error) {
	return store.getVehicle(ctx, sqlSelectVehicleByPlate, plate.String())
}

func (store queries) GetVehicle(ctx context.Context, vehicleID parking.VehicleID) (parking.Vehicle, error) {
	return store.getVehicle(ctx, sqlSelectVehicle, vehicleID.String())
}

func (store queries) getVehicle(ctx context.Context, query string, key string) (parking.Vehicle, error) {
	var row vehicleRow
	err := store.db.QueryRow(ctx, query, key).Scan(&row.vehicleID, &row.plate, &row.ownerAccountID, &row.currentLotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeGet, parking.ErrUnknownVehicle)
	}
	if err != nil {
		return parking.Vehicle{}, wrapDriverError(errorSubjectVehicle, errorCodeGet, err)
	}
	vehicle, err := row.toDomain()
	if err != nil {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
	}
	return vehicle, nil
}

func (store queries) PlaceVehicle(ctx context.Context, vehicleID parking.VehicleID, lotID parking.LotID) error {
	tag, err := store.db.Exec(ctx, sqlPlaceVehicle, vehicleID.String(), lotID.String())
	if err != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	exists, err := store.exists(ctx, sqlVehicleExists, vehicleID.String())
	if err != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectVehicle, errorCodePlace, parking.ErrUnknownVehicle)
	}
	return wrapStoreError(errorSubjectVehicle, errorCodePlace, parking.ErrVehicleParked)
}

func (store queries) ClearVehiclePlacement(ctx context.Context, vehicleID parking.VehicleID) error {
	tag, err := store.db.Exec(ctx, sqlClearVehicle, vehicleID.String())
	if err != nil {
		return wrapDriverError(errorSubjectVehicle, errorCodePlace, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectVehicle, errorCodePlace, parking.ErrUnknownVehicle)
	}
	return nil
}

func (store queries) InsertVehicle(ctx context.Context, input parking.NewVehicleInput) (parking.Vehicle, error) {
	vehicleIDValue := uuid.NewString()
	_, err := store.db.Exec(ctx, sqlInsertVehicle, vehicleIDValue, input.Plate.String(), input.OwnerAccountID.String())
	if isUniqueViolation(err) {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInsert, parking.ErrPlateTaken)
	}
	if err != nil {
		return parking.Vehicle{}, wrapDriverError(errorSubjectVehicle, errorCodeInsert, err)
	}
	vehicleID, err := parking.NewVehicleID(vehicleIDValue)
	if err != nil {
		return parking.Vehicle{}, wrapStoreError(errorSubjectVehicle, errorCodeInvalid, err)
	}
	return parking.Vehicle{ID: vehicleID, Plate: input.Plate, OwnerAccountID: input.OwnerAccountID}, nil
}

func (store queries) GetAccount(ctx context.Context, accountID parking.AccountID) (parking.Account, error) {
	var row accountRow
	err := store.db.QueryRow(ctx, sqlSelectAccount, accountID.String()).Scan(&row.accountID, &row.role, &row.email, &row.balanceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, parking.ErrUnknownAccount)
	}
	if err != nil {
		return parking.Account{}, wrapDriverError(errorSubjectAccount, errorCodeGet, err)
	}
	account, err := row.toDomain()
	if err != nil {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

func (store queries) DebitAccount(ctx context.Context, accountID parking.AccountID, amount parking.AmountCents) error {
	tag, err := store.db.Exec(ctx, sqlDebitAccount, accountID.String(), amount.Int64())
	if err != nil {
		return wrapDriverError(errorSubjectAccount, errorCodeDebit, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var balance int64
	err = store.db.QueryRow(ctx, sqlAccountBalance, accountID.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return wrapStoreError(errorSubjectAccount, errorCodeDebit, parking.ErrUnknownAccount)
	}
	if err != nil {
		return wrapDriverError(errorSubjectAccount, errorCodeDebit, err)
	}
	return wrapStoreError(errorSubjectAccount, errorCodeDebit, parking.ErrInsufficientFunds)
}

func (store queries) AdjustAccountBalance(ctx context.Context, accountID parking.AccountID, delta parking.AmountCents) error {
	tag, err := store.db.Exec(ctx, sqlAdjustAccount, accountID.String(), delta.Int64())
	if err != nil {
		return wrapDriverError(errorSubjectAccount, errorCodeAdjust, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeAdjust, parking.ErrUnknownAccount)
	}
	return nil
}

func (store queries) InsertAccount(ctx context.Context, input parking.NewAccountInput) (parking.Account, error) {
	_, err := store.db.Exec(ctx, sqlInsertAccount, input.ID.String(), input.Role.String(), input.Email)
	if isUniqueViolation(err) {
		return parking.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInsert, parking.ErrAccountExists)
	}
	if err != nil {
		return parking.Account{}, wrapDriverError(errorSubjectAccount, errorCodeInsert, err)
	}
	return parking.Account{ID: input.ID, Role: input.Role, Email: input.Email}, nil
}

func (store queries) InsertSession(ctx context.Context, input parking.SessionInput) (parking.Session, error) {
	sessionIDValue := uuid.NewString()
	startsAt := storedTime(input.StartsAt)
	endsAt := storedTime(input.EndsAt)
	_, err := store.db.Exec(ctx, sqlInsertSession,
		sessionIDValue,
		input.VehicleID.String(),
		input.LotID.String(),
		input.AccountID.String(),
		parking.SessionStatusActive.String(),
		startsAt,
		endsAt,
		input.AmountCents.Int64(),
		input.Metadata.String(),
	)
	if err != nil {
		return parking.Session{}, wrapDriverError(errorSubjectSession, errorCodeInsert, err)
	}
	sessionID, err := parking.NewSessionID(sessionIDValue)
	if err != nil {
		return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return parking.Session{
		ID:          sessionID,
		VehicleID:   input.VehicleID,
		LotID:       input.LotID,
		AccountID:   input.AccountID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		AmountCents: input.AmountCents,
		Status:      parking.SessionStatusActive,
		Metadata:    input.Metadata,
	}, nil
}

func (store queries) GetSession(ctx context.Context, sessionID parking.SessionID) (parking.Session, error) {
	var row sessionRow
	err := store.db.QueryRow(ctx, sqlSelectSession, sessionID.String()).Scan(
		&row.sessionID, &row.vehicleID, &row.lotID, &row.accountID, &row.status,
		&row.startsAt, &row.endsAt, &row.amountCents, &row.metadata, &row.closedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeGet, parking.ErrUnknownSession)
	}
	if err != nil {
		return parking.Session{}, wrapDriverError(errorSubjectSession, errorCodeGet, err)
	}
	session, err := row.toDomain()
	if err != nil {
		return parking.Session{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return session, nil
}

func (store queries) UpdateSessionWindow(ctx context.Context, update parking.SessionWindowUpdate) error {
	tag, err := store.db.Exec(ctx, sqlUpdateSessionSpan,
		update.SessionID.String(),
		parking.SessionStatusActive.String(),
		storedTime(update.ExpectedEndsAt),
		update.ExpectedAmountCents.Int64(),
		storedTime(update.EndsAt),
		update.AmountCents.Int64(),
	)
	if err != nil {
		return wrapDriverError(errorSubjectSession, errorCodeUpdate, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if err := store.requireRow(ctx, sqlSessionExists, update.SessionID.String(), errorSubjectSession, errorCodeUpdate, parking.ErrUnknownSession); err != nil {
		return err
	}
	return wrapStoreError(errorSubjectSession, errorCodeUpdate, parking.ErrWriteConflict)
}

func (store queries) CloseSession(ctx context.Context, sessionID parking.SessionID, closedAt time.Time) error {
	tag, err := store.db.Exec(ctx, sqlCloseSession,
		sessionID.String(),
		parking.SessionStatusActive.String(),
		parking.SessionStatusClosed.String(),
		storedTime(closedAt),
	)
	if err != nil {
		return wrapDriverError(errorSubjectSession, errorCodeClose, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if err := store.requireRow(ctx, sqlSessionExists, sessionID.String(), errorSubjectSession, errorCodeClose, parking.ErrUnknownSession); err != nil {
		return err
	}
	return wrapStoreError(errorSubjectSession, errorCodeClose, parking.ErrSessionClosed)
}

func (store queries) exists(ctx context.Context, query string, key string) (bool, error) {
	var found bool
	err := store.db.QueryRow(ctx, query, key).Scan(&found)
	return found, err
}

func (store queries) requireRow(ctx context.Context, query string, key string, subject string, code string, missing error) error {
	found, err := store.exists(ctx, query, key)
	if err != nil {
		return wrapDriverError(subject, code, err)
	}
	if !found {
		return wrapStoreError(subject, code, missing)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return parking.WrapError(errorOperationStore, subject, code, err)
}

func wrapDriverError(subject string, code string, err error) error {
	if isWriteConflict(err) {
		return wrapStoreError(subject, code, errors.Join(parking.ErrWriteConflict, err))
	}
	return wrapStoreError(subject, code, parking.Unavailable(err))
}

func storedTime(value time.Time) time.Time {
	return value.UTC().Truncate(time.Microsecond)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode
}
