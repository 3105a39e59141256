package parking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memState is the committed ledger held by memStore.
type memState struct {
	accounts map[string]Account
	lots     map[string]Lot
	vehicles map[string]Vehicle
	sessions map[string]Session
	wardens  map[wardenKey]bool
}

type wardenKey struct {
	lot    string
	warden string
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[string]Account),
		lots:     make(map[string]Lot),
		vehicles: make(map[string]Vehicle),
		sessions: make(map[string]Session),
		wardens:  make(map[wardenKey]bool),
	}
}

func (state *memState) clone() *memState {
	copied := newMemState()
	for key, value := range state.accounts {
		copied.accounts[key] = value
	}
	for key, value := range state.lots {
		copied.lots[key] = value
	}
	for key, value := range state.vehicles {
		copied.vehicles[key] = value
	}
	for key, value := range state.sessions {
		copied.sessions[key] = value
	}
	for key, value := range state.wardens {
		copied.wardens[key] = value
	}
	return copied
}

// memWrite replays one transactional write against committed state. It
// returns false when the condition the write was made under no longer holds.
type memWrite func(state *memState) bool

// memStore runs transactions concurrently. Each transaction reads a snapshot
// taken when it starts and queues its writes; commit replays the queue against
// the committed state, re-checking every conditional write. A failed re-check
// aborts the commit with ErrWriteConflict, the way a database reports a
// serialization failure.
type memStore struct {
	mutex    sync.Mutex
	state    *memState
	sequence atomic.Int64

	withTxCalls     int
	commitConflicts int
	// beforeCommit runs after fn succeeds and before the commit lock is taken.
	beforeCommit func()

	writeConflicts      int
	debitError          error
	placeVehicleError   error
	insertSessionError  error
	updateWindowError   error
	closeSessionError   error
	getSessionOverrides map[string]Session
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (store *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mutex.Lock()
	store.withTxCalls++
	if store.writeConflicts > 0 {
		store.writeConflicts--
		store.mutex.Unlock()
		return ErrWriteConflict
	}
	tx := &memTx{store: store, state: store.state.clone()}
	store.mutex.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if store.beforeCommit != nil {
		store.beforeCommit()
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	working := store.state.clone()
	for _, write := range tx.writes {
		if !write(working) {
			store.commitConflicts++
			return ErrWriteConflict
		}
	}
	store.state = working
	return nil
}

func (store *memStore) committed() *memTx {
	return &memTx{store: store, state: store.state}
}

func (store *memStore) GetLot(ctx context.Context, lotID LotID) (Lot, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().GetLot(ctx, lotID)
}

func (store *memStore) AdmitVehicle(ctx context.Context, lotID LotID) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.AdmitVehicle(ctx, lotID) })
}

func (store *memStore) ReleaseSpace(ctx context.Context, lotID LotID) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.ReleaseSpace(ctx, lotID) })
}

func (store *memStore) AddLotRevenue(ctx context.Context, lotID LotID, delta AmountCents) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.AddLotRevenue(ctx, lotID, delta) })
}

func (store *memStore) InsertLot(ctx context.Context, input NewLotInput) (Lot, error) {
	var lot Lot
	err := store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var err error
		lot, err = txStore.InsertLot(ctx, input)
		return err
	})
	return lot, err
}

func (store *memStore) ListLots(ctx context.Context) ([]Lot, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().ListLots(ctx)
}

func (store *memStore) ListLotSessions(ctx context.Context, lotID LotID) ([]Session, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().ListLotSessions(ctx, lotID)
}

func (store *memStore) AssignWarden(ctx context.Context, lotID LotID, wardenID AccountID) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.AssignWarden(ctx, lotID, wardenID) })
}

func (store *memStore) ListLotWardens(ctx context.Context, lotID LotID) ([]AccountID, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().ListLotWardens(ctx, lotID)
}

func (store *memStore) IsWardenAssigned(ctx context.Context, lotID LotID, wardenID AccountID) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().IsWardenAssigned(ctx, lotID, wardenID)
}

func (store *memStore) GetVehicleByPlate(ctx context.Context, plate Plate) (Vehicle, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().GetVehicleByPlate(ctx, plate)
}

func (store *memStore) GetVehicle(ctx context.Context, vehicleID VehicleID) (Vehicle, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().GetVehicle(ctx, vehicleID)
}

func (store *memStore) PlaceVehicle(ctx context.Context, vehicleID VehicleID, lotID LotID) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.PlaceVehicle(ctx, vehicleID, lotID) })
}

func (store *memStore) ClearVehiclePlacement(ctx context.Context, vehicleID VehicleID) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.ClearVehiclePlacement(ctx, vehicleID) })
}

func (store *memStore) InsertVehicle(ctx context.Context, input NewVehicleInput) (Vehicle, error) {
	var vehicle Vehicle
	err := store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var err error
		vehicle, err = txStore.InsertVehicle(ctx, input)
		return err
	})
	return vehicle, err
}

func (store *memStore) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().GetAccount(ctx, accountID)
}

func (store *memStore) DebitAccount(ctx context.Context, accountID AccountID, amount AmountCents) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.DebitAccount(ctx, accountID, amount) })
}

func (store *memStore) AdjustAccountBalance(ctx context.Context, accountID AccountID, delta AmountCents) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		return txStore.AdjustAccountBalance(ctx, accountID, delta)
	})
}

func (store *memStore) InsertAccount(ctx context.Context, input NewAccountInput) (Account, error) {
	var account Account
	err := store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var err error
		account, err = txStore.InsertAccount(ctx, input)
		return err
	})
	return account, err
}

func (store *memStore) InsertSession(ctx context.Context, input SessionInput) (Session, error) {
	var session Session
	err := store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var err error
		session, err = txStore.InsertSession(ctx, input)
		return err
	})
	return session, err
}

func (store *memStore) GetSession(ctx context.Context, sessionID SessionID) (Session, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.committed().GetSession(ctx, sessionID)
}

func (store *memStore) UpdateSessionWindow(ctx context.Context, update SessionWindowUpdate) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error { return txStore.UpdateSessionWindow(ctx, update) })
}

func (store *memStore) CloseSession(ctx context.Context, sessionID SessionID, closedAt time.Time) error {
	return store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		return txStore.CloseSession(ctx, sessionID, closedAt)
	})
}

func (store *memStore) activeSessions(lotID LotID) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	count := 0
	for _, session := range store.state.sessions {
		if session.LotID == lotID && session.Status == SessionStatusActive {
			count++
		}
	}
	return count
}

func (store *memStore) billedTotal() AmountCents {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var total AmountCents
	for _, session := range store.state.sessions {
		total += session.AmountCents
	}
	return total
}

func (store *memStore) conflicts() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.commitConflicts
}

// memTx reads its snapshot, applies its own writes to it and queues them for
// commit. The committed view used by plain reads never queues anything.
type memTx struct {
	store  *memStore
	state  *memState
	writes []memWrite
}

func (tx *memTx) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, tx)
}

func (tx *memTx) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, tx.store.sequence.Add(1))
}

func (tx *memTx) queue(write memWrite) {
	tx.writes = append(tx.writes, write)
}

func (tx *memTx) GetLot(_ context.Context, lotID LotID) (Lot, error) {
	lot, ok := tx.state.lots[lotID.String()]
	if !ok {
		return Lot{}, ErrUnknownLot
	}
	return lot, nil
}

func admitVehicle(state *memState, key string) bool {
	lot, ok := state.lots[key]
	if !ok || lot.OccupiedSpaces >= lot.TotalSpaces {
		return false
	}
	lot.OccupiedSpaces++
	state.lots[key] = lot
	return true
}

func (tx *memTx) AdmitVehicle(_ context.Context, lotID LotID) error {
	key := lotID.String()
	lot, ok := tx.state.lots[key]
	if !ok {
		return ErrUnknownLot
	}
	if lot.OccupiedSpaces >= lot.TotalSpaces {
		return ErrLotFull
	}
	admitVehicle(tx.state, key)
	tx.queue(func(state *memState) bool { return admitVehicle(state, key) })
	return nil
}

func releaseSpace(state *memState, key string) bool {
	lot, ok := state.lots[key]
	if !ok {
		return false
	}
	if lot.OccupiedSpaces > 0 {
		lot.OccupiedSpaces--
	}
	state.lots[key] = lot
	return true
}

func (tx *memTx) ReleaseSpace(_ context.Context, lotID LotID) error {
	key := lotID.String()
	if !releaseSpace(tx.state, key) {
		return ErrUnknownLot
	}
	tx.queue(func(state *memState) bool { return releaseSpace(state, key) })
	return nil
}

func addLotRevenue(state *memState, key string, delta AmountCents) bool {
	lot, ok := state.lots[key]
	if !ok {
		return false
	}
	lot.RevenueCents += delta
	state.lots[key] = lot
	return true
}

func (tx *memTx) AddLotRevenue(_ context.Context, lotID LotID, delta AmountCents) error {
	key := lotID.String()
	if !addLotRevenue(tx.state, key, delta) {
		return ErrUnknownLot
	}
	tx.queue(func(state *memState) bool { return addLotRevenue(state, key, delta) })
	return nil
}

func (tx *memTx) InsertLot(_ context.Context, input NewLotInput) (Lot, error) {
	lot := Lot{
		ID:              LotID{value: tx.nextID("lot")},
		OwnerAccountID:  input.OwnerAccountID,
		Name:            input.Name,
		TotalSpaces:     input.TotalSpaces,
		HourlyRateCents: input.HourlyRateCents,
	}
	tx.state.lots[lot.ID.String()] = lot
	tx.queue(func(state *memState) bool {
		state.lots[lot.ID.String()] = lot
		return true
	})
	return lot, nil
}

func (tx *memTx) ListLots(_ context.Context) ([]Lot, error) {
	lots := make([]Lot, 0, len(tx.state.lots))
	for _, lot := range tx.state.lots {
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(left, right int) bool {
		if lots[left].Name != lots[right].Name {
			return lots[left].Name < lots[right].Name
		}
		return lots[left].ID.String() < lots[right].ID.String()
	})
	return lots, nil
}

func (tx *memTx) ListLotSessions(_ context.Context, lotID LotID) ([]Session, error) {
	sessions := make([]Session, 0)
	for _, session := range tx.state.sessions {
		if session.LotID == lotID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(left, right int) bool {
		if !sessions[left].StartsAt.Equal(sessions[right].StartsAt) {
			return sessions[left].StartsAt.Before(sessions[right].StartsAt)
		}
		return sessions[left].ID.String() < sessions[right].ID.String()
	})
	return sessions, nil
}

func (tx *memTx) AssignWarden(_ context.Context, lotID LotID, wardenID AccountID) error {
	key := wardenKey{lot: lotID.String(), warden: wardenID.String()}
	tx.state.wardens[key] = true
	tx.queue(func(state *memState) bool {
		state.wardens[key] = true
		return true
	})
	return nil
}

func (tx *memTx) ListLotWardens(_ context.Context, lotID LotID) ([]AccountID, error) {
	wardens := make([]AccountID, 0)
	for key := range tx.state.wardens {
		if key.lot == lotID.String() {
			wardens = append(wardens, AccountID{value: key.warden})
		}
	}
	sort.Slice(wardens, func(left, right int) bool { return wardens[left].String() < wardens[right].String() })
	return wardens, nil
}

func (tx *memTx) IsWardenAssigned(_ context.Context, lotID LotID, wardenID AccountID) (bool, error) {
	return tx.state.wardens[wardenKey{lot: lotID.String(), warden: wardenID.String()}], nil
}

func (tx *memTx) GetVehicleByPlate(_ context.Context, plate Plate) (Vehicle, error) {
	for _, vehicle := range tx.state.vehicles {
		if vehicle.Plate == plate {
			return vehicle, nil
		}
	}
	return Vehicle{}, ErrUnknownVehicle
}

func (tx *memTx) GetVehicle(_ context.Context, vehicleID VehicleID) (Vehicle, error) {
	vehicle, ok := tx.state.vehicles[vehicleID.String()]
	if !ok {
		return Vehicle{}, ErrUnknownVehicle
	}
	return vehicle, nil
}

func placeVehicle(state *memState, key string, lotID LotID) bool {
	vehicle, ok := state.vehicles[key]
	if !ok || vehicle.CurrentLotID != nil {
		return false
	}
	placed := lotID
	vehicle.CurrentLotID = &placed
	state.vehicles[key] = vehicle
	return true
}

func (tx *memTx) PlaceVehicle(_ context.Context, vehicleID VehicleID, lotID LotID) error {
	if tx.store.placeVehicleError != nil {
		return tx.store.placeVehicleError
	}
	key := vehicleID.String()
	vehicle, ok := tx.state.vehicles[key]
	if !ok {
		return ErrUnknownVehicle
	}
	if vehicle.CurrentLotID != nil {
		return ErrVehicleParked
	}
	placeVehicle(tx.state, key, lotID)
	tx.queue(func(state *memState) bool { return placeVehicle(state, key, lotID) })
	return nil
}

func clearVehiclePlacement(state *memState, key string) bool {
	vehicle, ok := state.vehicles[key]
	if !ok {
		return false
	}
	vehicle.CurrentLotID = nil
	state.vehicles[key] = vehicle
	return true
}

func (tx *memTx) ClearVehiclePlacement(_ context.Context, vehicleID VehicleID) error {
	key := vehicleID.String()
	if !clearVehiclePlacement(tx.state, key) {
		return ErrUnknownVehicle
	}
	tx.queue(func(state *memState) bool { return clearVehiclePlacement(state, key) })
	return nil
}

func plateTaken(state *memState, plate Plate) bool {
	for _, existing := range state.vehicles {
		if existing.Plate == plate {
			return true
		}
	}
	return false
}

func (tx *memTx) InsertVehicle(_ context.Context, input NewVehicleInput) (Vehicle, error) {
	if plateTaken(tx.state, input.Plate) {
		return Vehicle{}, ErrPlateTaken
	}
	vehicle := Vehicle{
		ID:             VehicleID{value: tx.nextID("vehicle")},
		Plate:          input.Plate,
		OwnerAccountID: input.OwnerAccountID,
	}
	tx.state.vehicles[vehicle.ID.String()] = vehicle
	tx.queue(func(state *memState) bool {
		if plateTaken(state, vehicle.Plate) {
			return false
		}
		state.vehicles[vehicle.ID.String()] = vehicle
		return true
	})
	return vehicle, nil
}

func (tx *memTx) GetAccount(_ context.Context, accountID AccountID) (Account, error) {
	account, ok := tx.state.accounts[accountID.String()]
	if !ok {
		return Account{}, ErrUnknownAccount
	}
	return account, nil
}

func debitAccount(state *memState, key string, amount AmountCents) bool {
	account, ok := state.accounts[key]
	if !ok || account.BalanceCents < amount {
		return false
	}
	account.BalanceCents -= amount
	state.accounts[key] = account
	return true
}

func (tx *memTx) DebitAccount(_ context.Context, accountID AccountID, amount AmountCents) error {
	if tx.store.debitError != nil {
		return tx.store.debitError
	}
	key := accountID.String()
	account, ok := tx.state.accounts[key]
	if !ok {
		return ErrUnknownAccount
	}
	if account.BalanceCents < amount {
		return ErrInsufficientFunds
	}
	debitAccount(tx.state, key, amount)
	tx.queue(func(state *memState) bool { return debitAccount(state, key, amount) })
	return nil
}

func adjustAccountBalance(state *memState, key string, delta AmountCents) bool {
	account, ok := state.accounts[key]
	if !ok {
		return false
	}
	account.BalanceCents += delta
	state.accounts[key] = account
	return true
}

func (tx *memTx) AdjustAccountBalance(_ context.Context, accountID AccountID, delta AmountCents) error {
	key := accountID.String()
	if !adjustAccountBalance(tx.state, key, delta) {
		return ErrUnknownAccount
	}
	tx.queue(func(state *memState) bool { return adjustAccountBalance(state, key, delta) })
	return nil
}

func (tx *memTx) InsertAccount(_ context.Context, input NewAccountInput) (Account, error) {
	key := input.ID.String()
	if _, exists := tx.state.accounts[key]; exists {
		return Account{}, ErrAccountExists
	}
	account := Account{ID: input.ID, Role: input.Role, Email: input.Email}
	tx.state.accounts[key] = account
	tx.queue(func(state *memState) bool {
		if _, exists := state.accounts[key]; exists {
			return false
		}
		state.accounts[key] = account
		return true
	})
	return account, nil
}

func (tx *memTx) InsertSession(_ context.Context, input SessionInput) (Session, error) {
	if tx.store.insertSessionError != nil {
		return Session{}, tx.store.insertSessionError
	}
	session := Session{
		ID:          SessionID{value: tx.nextID("session")},
		VehicleID:   input.VehicleID,
		LotID:       input.LotID,
		AccountID:   input.AccountID,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		AmountCents: input.AmountCents,
		Status:      SessionStatusActive,
		Metadata:    input.Metadata,
	}
	tx.state.sessions[session.ID.String()] = session
	tx.queue(func(state *memState) bool {
		state.sessions[session.ID.String()] = session
		return true
	})
	return session, nil
}

func (tx *memTx) GetSession(_ context.Context, sessionID SessionID) (Session, error) {
	if override, ok := tx.store.getSessionOverrides[sessionID.String()]; ok {
		return override, nil
	}
	session, ok := tx.state.sessions[sessionID.String()]
	if !ok {
		return Session{}, ErrUnknownSession
	}
	return session, nil
}

func updateSessionWindow(state *memState, update SessionWindowUpdate) bool {
	key := update.SessionID.String()
	session, ok := state.sessions[key]
	if !ok || session.Status != SessionStatusActive || !session.EndsAt.Equal(update.ExpectedEndsAt) || session.AmountCents != update.ExpectedAmountCents {
		return false
	}
	session.EndsAt = update.EndsAt
	session.AmountCents = update.AmountCents
	state.sessions[key] = session
	return true
}

func (tx *memTx) UpdateSessionWindow(_ context.Context, update SessionWindowUpdate) error {
	if tx.store.updateWindowError != nil {
		return tx.store.updateWindowError
	}
	if _, ok := tx.state.sessions[update.SessionID.String()]; !ok {
		return ErrUnknownSession
	}
	if !updateSessionWindow(tx.state, update) {
		return ErrWriteConflict
	}
	tx.queue(func(state *memState) bool { return updateSessionWindow(state, update) })
	return nil
}

func closeSession(state *memState, key string, closedAt time.Time) bool {
	session, ok := state.sessions[key]
	if !ok || session.Status != SessionStatusActive {
		return false
	}
	session.Status = SessionStatusClosed
	session.ClosedAt = &closedAt
	state.sessions[key] = session
	return true
}

func (tx *memTx) CloseSession(_ context.Context, sessionID SessionID, closedAt time.Time) error {
	if tx.store.closeSessionError != nil {
		return tx.store.closeSessionError
	}
	key := sessionID.String()
	session, ok := tx.state.sessions[key]
	if !ok {
		return ErrUnknownSession
	}
	if session.Status != SessionStatusActive {
		return ErrSessionClosed
	}
	closeSession(tx.state, key, closedAt)
	tx.queue(func(state *memState) bool { return closeSession(state, key, closedAt) })
	return nil
}

// --- fixtures ---

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type parkingFixture struct {
	store    *memStore
	service  *Service
	owner    Account
	customer Account
	lot      Lot
	vehicle  Vehicle
}

func newParkingFixture(t *testing.T, spaces int, rate HourlyRateCents, balance AmountCents, options ...ServiceOption) *parkingFixture {
	t.Helper()
	store := newMemStore()
	service := mustNewService(t, store, options...)
	ctx := context.Background()
	owner, err := service.OpenAccount(ctx, mustAccountID(t, "owner-1"), RoleOwner, "owner@example.com")
	if err != nil {
		t.Fatalf("open owner: %v", err)
	}
	customer, err := service.OpenAccount(ctx, mustAccountID(t, "customer-1"), RoleCustomer, "customer@example.com")
	if err != nil {
		t.Fatalf("open customer: %v", err)
	}
	if balance > 0 {
		if _, err := service.TopUp(ctx, customer.ID, balance); err != nil {
			t.Fatalf("top up: %v", err)
		}
	}
	lot, err := service.PublishLot(ctx, owner.ID, "Central", spaces, rate)
	if err != nil {
		t.Fatalf("publish lot: %v", err)
	}
	vehicle, err := service.RegisterVehicle(ctx, customer.ID, mustPlate(t, "ABC123"))
	if err != nil {
		t.Fatalf("register vehicle: %v", err)
	}
	return &parkingFixture{store: store, service: service, owner: owner, customer: customer, lot: lot, vehicle: vehicle}
}

func (fixture *parkingFixture) addCustomer(t *testing.T, id string, plate string, balance AmountCents) (Account, Vehicle) {
	t.Helper()
	ctx := context.Background()
	account, err := fixture.service.OpenAccount(ctx, mustAccountID(t, id), RoleCustomer, id+"@example.com")
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if balance > 0 {
		if _, err := fixture.service.TopUp(ctx, account.ID, balance); err != nil {
			t.Fatalf("top up: %v", err)
		}
	}
	vehicle, err := fixture.service.RegisterVehicle(ctx, account.ID, mustPlate(t, plate))
	if err != nil {
		t.Fatalf("register vehicle: %v", err)
	}
	return account, vehicle
}

func (fixture *parkingFixture) mustLot(t *testing.T) Lot {
	t.Helper()
	lot, err := fixture.service.GetLot(context.Background(), fixture.lot.ID)
	if err != nil {
		t.Fatalf("get lot: %v", err)
	}
	return lot
}

func (fixture *parkingFixture) mustAccount(t *testing.T, accountID AccountID) Account {
	t.Helper()
	account, err := fixture.service.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account
}

func mustNewService(t *testing.T, store Store, options ...ServiceOption) *Service {
	t.Helper()
	options = append([]ServiceOption{WithConflictBackoff(0)}, options...)
	service, err := NewService(store, func() time.Time { return fixedNow }, options...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func mustAccountID(t *testing.T, raw string) AccountID {
	t.Helper()
	value, err := NewAccountID(raw)
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	return value
}

func mustSessionID(t *testing.T, raw string) SessionID {
	t.Helper()
	value, err := NewSessionID(raw)
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	return value
}

func mustLotID(t *testing.T, raw string) LotID {
	t.Helper()
	value, err := NewLotID(raw)
	if err != nil {
		t.Fatalf("lot id: %v", err)
	}
	return value
}

func mustPlate(t *testing.T, raw string) Plate {
	t.Helper()
	value, err := NewPlate(raw)
	if err != nil {
		t.Fatalf("plate: %v", err)
	}
	return value
}

func mustMetadata(t *testing.T, raw string) MetadataJSON {
	t.Helper()
	value, err := NewMetadataJSON(raw)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	return value
}
