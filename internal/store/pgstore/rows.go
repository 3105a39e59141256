package pgstore

import (
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
)

type accountRow struct {
	accountID    string
	role         string
	email        string
	balanceCents int64
}

func (row accountRow) toDomain() (parking.Account, error) {
	accountID, err := parking.NewAccountID(row.accountID)
	if err != nil {
		return parking.Account{}, err
	}
	role, err := parking.ParseRole(row.role)
	if err != nil {
		return parking.Account{}, err
	}
	return parking.Account{ID: accountID, Role: role, Email: row.email, BalanceCents: parking.AmountCents(row.balanceCents)}, nil
}

type lotRow struct {
	lotID           string
	ownerAccountID  string
	name            string
	totalSpaces     int
	occupiedSpaces  int
	hourlyRateCents int64
	revenueCents    int64
}

func (row lotRow) toDomain() (parking.Lot, error) {
	lotID, err := parking.NewLotID(row.lotID)
	if err != nil {
		return parking.Lot{}, err
	}
	ownerID, err := parking.NewAccountID(row.ownerAccountID)
	if err != nil {
		return parking.Lot{}, err
	}
	rate, err := parking.NewHourlyRateCents(row.hourlyRateCents)
	if err != nil {
		return parking.Lot{}, err
	}
	return parking.Lot{
		ID:              lotID,
		OwnerAccountID:  ownerID,
		Name:            row.name,
		TotalSpaces:     row.totalSpaces,
		OccupiedSpaces:  row.occupiedSpaces,
		HourlyRateCents: rate,
		RevenueCents:    parking.AmountCents(row.revenueCents),
	}, nil
}

type vehicleRow struct {
	vehicleID      string
	plate          string
	ownerAccountID string
	currentLotID   *string
}

func (row vehicleRow) toDomain() (parking.Vehicle, error) {
	vehicleID, err := parking.NewVehicleID(row.vehicleID)
	if err != nil {
		return parking.Vehicle{}, err
	}
	plate, err := parking.NewPlate(row.plate)
	if err != nil {
		return parking.Vehicle{}, err
	}
	ownerID, err := parking.NewAccountID(row.ownerAccountID)
	if err != nil {
		return parking.Vehicle{}, err
	}
	vehicle := parking.Vehicle{ID: vehicleID, Plate: plate, OwnerAccountID: ownerID}
	if row.currentLotID != nil {
		lotID, err := parking.NewLotID(*row.currentLotID)
		if err != nil {
			return parking.Vehicle{}, err
		}
		vehicle.CurrentLotID = &lotID
	}
	return vehicle, nil
}

type sessionRow struct {
	sessionID   string
	vehicleID   string
	lotID       string
	accountID   string
	status      string
	startsAt    time.Time
	endsAt      time.Time
	amountCents int64
	metadata    string
	closedAt    *time.Time
}

func (row sessionRow) toDomain() (parking.Session, error) {
	sessionID, err := parking.NewSessionID(row.sessionID)
	if err != nil {
		return parking.Session{}, err
	}
	vehicleID, err := parking.NewVehicleID(row.vehicleID)
	if err != nil {
		return parking.Session{}, err
	}
	lotID, err := parking.NewLotID(row.lotID)
	if err != nil {
		return parking.Session{}, err
	}
	accountID, err := parking.NewAccountID(row.accountID)
	if err != nil {
		return parking.Session{}, err
	}
	status, err := parking.ParseSessionStatus(row.status)
	if err != nil {
		return parking.Session{}, err
	}
	metadata, err := parking.NewMetadataJSON(row.metadata)
	if err != nil {
		return parking.Session{}, err
	}
	session := parking.Session{
		ID:          sessionID,
		VehicleID:   vehicleID,
		LotID:       lotID,
		AccountID:   accountID,
		StartsAt:    row.startsAt.UTC(),
		EndsAt:      row.endsAt.UTC(),
		AmountCents: parking.AmountCents(row.amountCents),
		Status:      status,
		Metadata:    metadata,
	}
	if row.closedAt != nil {
		closedAt := row.closedAt.UTC()
		session.ClosedAt = &closedAt
	}
	return session, nil
}
