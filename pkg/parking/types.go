package parking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// AmountCents is a signed integer currency in cents.
type AmountCents int64

// Int64 exposes the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// Negated flips the sign.
func (amount AmountCents) Negated() AmountCents {
	return -amount
}

// NewPositiveAmountCents validates an amount and ensures it is strictly positive.
func NewPositiveAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// HourlyRateCents is the price of one hour of parking in cents.
type HourlyRateCents int64

// NewHourlyRateCents validates a hourly rate between zero and MaxHourlyRateCents.
func NewHourlyRateCents(raw int64) (HourlyRateCents, error) {
	if err := validateHourlyRate(raw); err != nil {
		return 0, err
	}
	return HourlyRateCents(raw), nil
}

func validateHourlyRate(raw int64) error {
	if raw < 0 {
		return fmt.Errorf("%w: must not be negative", ErrInvalidHourlyRate)
	}
	if raw > MaxHourlyRateCents {
		return fmt.Errorf("%w: must not exceed %d", ErrInvalidHourlyRate, MaxHourlyRateCents)
	}
	return nil
}

// Int64 exposes the raw cents value.
func (rate HourlyRateCents) Int64() int64 {
	return int64(rate)
}

// AccountID identifies an account.
type AccountID struct {
	value string
}

// LotID identifies a parking lot.
type LotID struct {
	value string
}

// VehicleID identifies a registered vehicle.
type VehicleID struct {
	value string
}

// SessionID identifies a parking session.
type SessionID struct {
	value string
}

// Plate is a normalized licence plate.
type Plate struct {
	value string
}

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id AccountID) IsZero() bool {
	return id.value == ""
}

// NewLotID validates and normalizes a lot id.
func NewLotID(raw string) (LotID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return LotID{}, fmt.Errorf("%w: empty value", ErrInvalidLotID)
	}
	return LotID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id LotID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id LotID) IsZero() bool {
	return id.value == ""
}

// NewVehicleID validates and normalizes a vehicle id.
func NewVehicleID(raw string) (VehicleID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VehicleID{}, fmt.Errorf("%w: empty value", ErrInvalidVehicleID)
	}
	return VehicleID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id VehicleID) String() string {
	return id.value
}

// NewSessionID validates and normalizes a session id.
func NewSessionID(raw string) (SessionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SessionID{}, fmt.Errorf("%w: empty value", ErrInvalidSessionID)
	}
	return SessionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SessionID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id SessionID) IsZero() bool {
	return id.value == ""
}

// NewPlate upper-cases and validates a licence plate.
func NewPlate(raw string) (Plate, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) < plateMinLength || len(normalized) > plateMaxLength {
		return Plate{}, fmt.Errorf("%w: length must be between %d and %d", ErrInvalidPlate, plateMinLength, plateMaxLength)
	}
	for _, character := range normalized {
		isLetter := character >= 'A' && character <= 'Z'
		isDigit := character >= '0' && character <= '9'
		if !isLetter && !isDigit && character != '-' {
			return Plate{}, fmt.Errorf("%w: unexpected character %q", ErrInvalidPlate, character)
		}
	}
	return Plate{value: normalized}, nil
}

// String returns the normalized plate.
func (plate Plate) String() string {
	return plate.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = defaultMetadataJSON
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return defaultMetadataJSON
	}
	return metadata.value
}

// Role is the closed set of account roles.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleWarden   Role = "warden"
	RoleCustomer Role = "customer"
)

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleOwner, RoleWarden, RoleCustomer:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// SessionStatus defines session lifecycle. Closed is terminal.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// ParseSessionStatus validates a stored status value.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch status := SessionStatus(raw); status {
	case SessionStatusActive, SessionStatusClosed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionStatus, raw)
	}
}

// String returns the status name.
func (status SessionStatus) String() string {
	return string(status)
}

// Account holds prepaid credit.
type Account struct {
	ID           AccountID
	Role         Role
	Email        string
	BalanceCents AmountCents
}

// Lot is a parking facility with fixed capacity.
type Lot struct {
	ID              LotID
	OwnerAccountID  AccountID
	Name            string
	TotalSpaces     int
	OccupiedSpaces  int
	HourlyRateCents HourlyRateCents
	RevenueCents    AmountCents
}

// FreeSpaces returns how many more vehicles the lot admits.
func (lot Lot) FreeSpaces() int {
	free := lot.TotalSpaces - lot.OccupiedSpaces
	if free < 0 {
		return 0
	}
	return free
}

// Vehicle is a registered car. CurrentLotID is nil unless the vehicle is parked.
type Vehicle struct {
	ID             VehicleID
	Plate          Plate
	OwnerAccountID AccountID
	CurrentLotID   *LotID
}

// Session records one vehicle occupying one lot for a time window.
type Session struct {
	ID          SessionID
	VehicleID   VehicleID
	LotID       LotID
	AccountID   AccountID
	StartsAt    time.Time
	EndsAt      time.Time
	AmountCents AmountCents
	Status      SessionStatus
	Metadata    MetadataJSON
	ClosedAt    *time.Time
}

// SessionInput describes a session row to insert.
type SessionInput struct {
	VehicleID   VehicleID
	LotID       LotID
	AccountID   AccountID
	StartsAt    time.Time
	EndsAt      time.Time
	AmountCents AmountCents
	Metadata    MetadataJSON
}

// SessionWindowUpdate is an optimistic rewrite of a session's end and amount.
// The store applies it only while the row still holds ExpectedEndsAt and ExpectedAmountCents.
type SessionWindowUpdate struct {
	SessionID           SessionID
	ExpectedEndsAt      time.Time
	ExpectedAmountCents AmountCents
	EndsAt              time.Time
	AmountCents         AmountCents
}

// SessionReceipt is what callers get back after a session is created or revised.
type SessionReceipt struct {
	SessionID   SessionID
	LotID       LotID
	Plate       Plate
	StartsAt    time.Time
	EndsAt      time.Time
	AmountCents AmountCents
}

// NewLotInput describes a lot to publish.
type NewLotInput struct {
	OwnerAccountID  AccountID
	Name            string
	TotalSpaces     int
	HourlyRateCents HourlyRateCents
}

// NewVehicleInput describes a vehicle to register.
type NewVehicleInput struct {
	OwnerAccountID AccountID
	Plate          Plate
}

// NewAccountInput describes an account to open.
type NewAccountInput struct {
	ID    AccountID
	Role  Role
	Email string
}

func validateEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	address, err := mail.ParseAddress(trimmed)
	if err != nil || address.Address != trimmed {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return trimmed, nil
}

// Store is the persistence contract used by Service.
// Every mutating method is expected to run on the txStore handed to WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetLot(ctx context.Context, lotID LotID) (Lot, error)
	// AdmitVehicle takes one space in the lot in a single conditional write.
	// It returns ErrLotFull when no space is free and ErrUnknownLot when the lot is absent.
	AdmitVehicle(ctx context.Context, lotID LotID) error
	ReleaseSpace(ctx context.Context, lotID LotID) error
	AddLotRevenue(ctx context.Context, lotID LotID, delta AmountCents) error
	InsertLot(ctx context.Context, input NewLotInput) (Lot, error)
	// ListLots returns every lot ordered by name.
	ListLots(ctx context.Context) ([]Lot, error)
	// ListLotSessions returns the lot's sessions, oldest start first.
	ListLotSessions(ctx context.Context, lotID LotID) ([]Session, error)

	// AssignWarden records that the warden patrols the lot. Repeating an assignment is a no-op.
	AssignWarden(ctx context.Context, lotID LotID, wardenID AccountID) error
	ListLotWardens(ctx context.Context, lotID LotID) ([]AccountID, error)
	IsWardenAssigned(ctx context.Context, lotID LotID, wardenID AccountID) (bool, error)

	GetVehicleByPlate(ctx context.Context, plate Plate) (Vehicle, error)
	GetVehicle(ctx context.Context, vehicleID VehicleID) (Vehicle, error)
	// PlaceVehicle sets the vehicle's current lot, failing with ErrVehicleParked if it already has one.
	PlaceVehicle(ctx context.Context, vehicleID VehicleID, lotID LotID) error
	ClearVehiclePlacement(ctx context.Context, vehicleID VehicleID) error
	InsertVehicle(ctx context.Context, input NewVehicleInput) (Vehicle, error)

	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	// DebitAccount subtracts amount only if the balance covers it, otherwise ErrInsufficientFunds.
	DebitAccount(ctx context.Context, accountID AccountID, amount AmountCents) error
	// AdjustAccountBalance adds delta without a floor.
	AdjustAccountBalance(ctx context.Context, accountID AccountID, delta AmountCents) error
	InsertAccount(ctx context.Context, input NewAccountInput) (Account, error)

	InsertSession(ctx context.Context, input SessionInput) (Session, error)
	GetSession(ctx context.Context, sessionID SessionID) (Session, error)
	UpdateSessionWindow(ctx context.Context, update SessionWindowUpdate) error
	// CloseSession moves an active session to closed; ErrSessionClosed when it was not active.
	CloseSession(ctx context.Context, sessionID SessionID, closedAt time.Time) error
}
