package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/database"
	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresURLEnv = "PARKING_TEST_POSTGRES_URL"

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolationCode})) {
		t.Fatalf("expected unique violation")
	}
	if isUniqueViolation(errors.New("plain")) || isUniqueViolation(nil) {
		t.Fatalf("unexpected unique violation")
	}
	for _, code := range []string{pgSerializationFailureCode, pgDeadlockDetectedCode} {
		wrapped := wrapDriverError(errorSubjectSession, errorCodeUpdate, &pgconn.PgError{Code: code})
		if !errors.Is(wrapped, parking.ErrWriteConflict) {
			t.Fatalf("code %s: expected write conflict, got %v", code, wrapped)
		}
	}
	unavailable := wrapDriverError(errorSubjectLot, errorCodeGet, errors.New("dial tcp: refused"))
	if !errors.Is(unavailable, parking.ErrStoreUnavailable) || errors.Is(unavailable, parking.ErrConflict) {
		t.Fatalf("expected store unavailable, got %v", unavailable)
	}
}

func TestStoredTimeTruncatesToMicroseconds(t *testing.T) {
	t.Parallel()
	value := time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.FixedZone("x", 3600))
	stored := storedTime(value)
	if stored.Nanosecond() != 123456000 || stored.Location() != time.UTC {
		t.Fatalf("unexpected stored time %s", stored)
	}
}

// TestServiceAgainstPostgres runs the capacity race on a real database when one is configured.
func TestServiceAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv(postgresURLEnv)
	if databaseURL == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	ctx := context.Background()
	connection, err := database.Open(ctx, databaseURL)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	defer func() { _ = connection.Close() }()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	service, err := parking.NewService(New(pool), time.Now)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	suffix := uuid.NewString()[:8]
	owner, err := service.OpenAccount(ctx, mustAccountID(t, "owner-"+suffix), parking.RoleOwner, "owner@example.com")
	if err != nil {
		t.Fatalf("open owner: %v", err)
	}
	lot, err := service.PublishLot(ctx, owner.ID, "Race", 1, 100)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	const racers = 5
	accounts := make([]parking.AccountID, racers)
	plates := make([]parking.Plate, racers)
	for index := range accounts {
		account, err := service.OpenAccount(ctx, mustAccountID(t, fmt.Sprintf("racer-%s-%d", suffix, index)), parking.RoleCustomer, "racer@example.com")
		if err != nil {
			t.Fatalf("open racer: %v", err)
		}
		if _, err := service.TopUp(ctx, account.ID, 1000); err != nil {
			t.Fatalf("top up: %v", err)
		}
		plate, err := parking.NewPlate(fmt.Sprintf("%s%d", suffix[:6], index))
		if err != nil {
			t.Fatalf("plate: %v", err)
		}
		if _, err := service.RegisterVehicle(ctx, account.ID, plate); err != nil {
			t.Fatalf("register: %v", err)
		}
		accounts[index] = account.ID
		plates[index] = plate
	}

	results := make(chan error, racers)
	for index := range accounts {
		go func(index int) {
			_, err := service.CreateSession(ctx, accounts[index], lot.ID, plates[index], time.Hour, parking.MetadataJSON{})
			results <- err
		}(index)
	}
	successes := 0
	for range accounts {
		err := <-results
		switch {
		case err == nil:
			successes++
		case errors.Is(err, parking.ErrLotFull):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one admission, got %d", successes)
	}
	current, err := service.GetLot(ctx, lot.ID)
	if err != nil {
		t.Fatalf("get lot: %v", err)
	}
	if current.OccupiedSpaces != 1 || current.RevenueCents != 100 {
		t.Fatalf("unexpected lot %+v", current)
	}
	sessions, err := service.ListLotSessions(ctx, lot.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != parking.SessionStatusActive {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	warden, err := service.OpenAccount(ctx, mustAccountID(t, "warden-"+suffix), parking.RoleWarden, "warden@example.com")
	if err != nil {
		t.Fatalf("open warden: %v", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := service.AssignWarden(ctx, owner.ID, lot.ID, warden.ID); err != nil {
			t.Fatalf("assign attempt %d: %v", attempt, err)
		}
	}
	wardens, err := service.LotWardens(ctx, lot.ID)
	if err != nil || len(wardens) != 1 || wardens[0] != warden.ID {
		t.Fatalf("unexpected wardens %v %v", wardens, err)
	}
	if assigned, err := service.IsWardenOf(ctx, warden.ID, lot.ID); err != nil || !assigned {
		t.Fatalf("expected assignment, got %v %v", assigned, err)
	}
}

func mustAccountID(t *testing.T, raw string) parking.AccountID {
	t.Helper()
	value, err := parking.NewAccountID(raw)
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	return value
}
