package parking

import "time"

const (
	operationCreateSession   = "create_session"
	operationCloseSession    = "close_session"
	operationReviseSession   = "revise_session"
	operationTopUp           = "top_up"
	operationOpenAccount     = "open_account"
	operationPublishLot      = "publish_lot"
	operationRegisterVehicle = "register_vehicle"
	operationAssignWarden    = "assign_warden"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorSubjectSession   = "session"
	errorSubjectTx        = "transaction"
	errorCodeRetries      = "retries_exhausted"

	plateMinLength = 2
	plateMaxLength = 16

	defaultMetadataJSON = "{}"
)

// DefaultConflictRetries bounds how many times a transaction is re-run after a write conflict.
const DefaultConflictRetries = 3

// MaxSessionDuration bounds the window a single session may bill.
const MaxSessionDuration = 366 * 24 * time.Hour

// MaxHourlyRateCents bounds the hourly rate a lot may charge.
const MaxHourlyRateCents = 100_000_000

const conflictBackoffStep = 10 * time.Millisecond
