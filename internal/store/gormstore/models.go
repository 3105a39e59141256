package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table.
type Account struct {
	AccountID    string    `gorm:"size:64;primaryKey"`
	Role         string    `gorm:"size:16;not null"`
	Email        string    `gorm:"size:320;not null"`
	BalanceCents int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// Lot mirrors the lots table. OccupiedSpaces is the column the capacity guard
// increments conditionally.
type Lot struct {
	LotID           string    `gorm:"size:64;primaryKey"`
	OwnerAccountID  string    `gorm:"size:64;not null;index:idx_lots_owner"`
	Name            string    `gorm:"size:200;not null"`
	TotalSpaces     int       `gorm:"not null"`
	OccupiedSpaces  int       `gorm:"not null;default:0"`
	HourlyRateCents int64     `gorm:"not null"`
	RevenueCents    int64     `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (Lot) TableName() string { return "lots" }

func (lot *Lot) BeforeCreate(tx *gorm.DB) error {
	if lot.LotID == "" {
		lot.LotID = uuid.NewString()
	}
	return nil
}

// Vehicle mirrors the vehicles table.
type Vehicle struct {
	VehicleID      string    `gorm:"size:64;primaryKey"`
	Plate          string    `gorm:"size:16;not null;uniqueIndex:idx_vehicles_plate"`
	OwnerAccountID string    `gorm:"size:64;not null;index:idx_vehicles_owner"`
	CurrentLotID   *string   `gorm:"size:64;index:idx_vehicles_current_lot"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

func (vehicle *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if vehicle.VehicleID == "" {
		vehicle.VehicleID = uuid.NewString()
	}
	return nil
}

// Session mirrors the parking_sessions table.
type Session struct {
	SessionID   string         `gorm:"size:64;primaryKey"`
	VehicleID   string         `gorm:"size:64;not null;index:idx_sessions_vehicle"`
	LotID       string         `gorm:"size:64;not null;index:idx_sessions_lot_status,priority:1"`
	AccountID   string         `gorm:"size:64;not null;index:idx_sessions_account"`
	Status      string         `gorm:"size:16;not null;index:idx_sessions_lot_status,priority:2"`
	StartsAt    time.Time      `gorm:"not null"`
	EndsAt      time.Time      `gorm:"not null"`
	AmountCents int64          `gorm:"not null"`
	Metadata    datatypes.JSON `gorm:"not null"`
	ClosedAt    *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (Session) TableName() string { return "parking_sessions" }

func (session *Session) BeforeCreate(tx *gorm.DB) error {
	if session.SessionID == "" {
		session.SessionID = uuid.NewString()
	}
	return nil
}

// WardenAssignment mirrors the lot_wardens table.
type WardenAssignment struct {
	LotID     string    `gorm:"size:64;primaryKey"`
	AccountID string    `gorm:"size:64;primaryKey;index:idx_lot_wardens_account"`
	CreatedAt time.Time `gorm:"not null"`
}

func (WardenAssignment) TableName() string { return "lot_wardens" }

// Models lists every table managed by this store in migration order.
func Models() []any {
	return []any{&Account{}, &Lot{}, &Vehicle{}, &Session{}, &WardenAssignment{}}
}
