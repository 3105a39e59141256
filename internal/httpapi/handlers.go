package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger  *zap.Logger
	service ParkingService
	bucket  TokenBucket
}

// authorized resolves the caller and checks the role policy for requested.
func (handler *httpHandler) authorized(ctx *gin.Context, requested action) (principal, bool) {
	caller, err := principalFromClaims(getClaims(ctx))
	if err == nil {
		err = caller.authorize(requested)
	}
	if err != nil {
		handler.respondError(ctx, "authorize", err)
		return principal{}, false
	}
	return caller, true
}

func (handler *httpHandler) bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return false
	}
	return true
}

func (handler *httpHandler) handleOpenAccount(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionOpenAccount)
	if !ok {
		return
	}
	var request openAccountRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	role := caller.roles[0]
	if strings.TrimSpace(request.Role) != "" {
		requested, err := parking.ParseRole(request.Role)
		if err != nil {
			handler.respondError(ctx, "open account", err)
			return
		}
		if !caller.has(requested) {
			handler.respondError(ctx, "open account", fmt.Errorf("%w: role %s not granted", parking.ErrForbidden, requested))
			return
		}
		role = requested
	}
	email := request.Email
	if strings.TrimSpace(email) == "" {
		email = caller.email
	}
	account, err := handler.service.OpenAccount(ctx.Request.Context(), caller.accountID, role, email)
	if err != nil {
		handler.respondError(ctx, "open account", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleAccount(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionViewAccount)
	if !ok {
		return
	}
	account, err := handler.service.GetAccount(ctx.Request.Context(), caller.accountID)
	if err != nil {
		handler.respondError(ctx, "account", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleTopUp(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionTopUp)
	if !ok {
		return
	}
	var request topUpRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	amount, err := parking.NewPositiveAmountCents(request.AmountCents)
	if err != nil {
		handler.respondError(ctx, "top up", err)
		return
	}
	account, err := handler.service.TopUp(ctx.Request.Context(), caller.accountID, amount)
	if err != nil {
		handler.respondError(ctx, "top up", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": newAccountPayload(account)})
}

func (handler *httpHandler) handleRegisterVehicle(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionRegisterVehicle)
	if !ok {
		return
	}
	var request registerVehicleRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	plate, err := parking.NewPlate(request.Plate)
	if err != nil {
		handler.respondError(ctx, "register vehicle", err)
		return
	}
	vehicle, err := handler.service.RegisterVehicle(ctx.Request.Context(), caller.accountID, plate)
	if err != nil {
		handler.respondError(ctx, "register vehicle", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"vehicle": newVehiclePayload(vehicle)})
}

func (handler *httpHandler) handlePublishLot(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionPublishLot)
	if !ok {
		return
	}
	var request publishLotRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	rate, err := parking.NewHourlyRateCents(request.HourlyRateCents)
	if err != nil {
		handler.respondError(ctx, "publish lot", err)
		return
	}
	lot, err := handler.service.PublishLot(ctx.Request.Context(), caller.accountID, request.Name, request.TotalSpaces, rate)
	if err != nil {
		handler.respondError(ctx, "publish lot", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"lot": newLotPayload(lot)})
}

func (handler *httpHandler) handleLot(ctx *gin.Context) {
	if _, ok := handler.authorized(ctx, actionViewLot); !ok {
		return
	}
	lotID, err := parking.NewLotID(ctx.Param("lotID"))
	if err != nil {
		handler.respondError(ctx, "lot", err)
		return
	}
	lot, err := handler.service.GetLot(ctx.Request.Context(), lotID)
	if err != nil {
		handler.respondError(ctx, "lot", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lot": newLotPayload(lot)})
}

func (handler *httpHandler) handleLots(ctx *gin.Context) {
	if _, ok := handler.authorized(ctx, actionViewLot); !ok {
		return
	}
	lots, err := handler.service.ListLots(ctx.Request.Context())
	if err != nil {
		handler.respondError(ctx, "lots", err)
		return
	}
	payload := make([]lotPayload, 0, len(lots))
	for _, lot := range lots {
		payload = append(payload, newLotPayload(lot))
	}
	ctx.JSON(http.StatusOK, gin.H{"lots": payload})
}

// lotInScope loads the lot named in the path and applies the lot-wide rules.
func (handler *httpHandler) lotInScope(ctx *gin.Context, requested action, operation string) (principal, parking.Lot, bool) {
	caller, ok := handler.authorized(ctx, requested)
	if !ok {
		return principal{}, parking.Lot{}, false
	}
	lotID, err := parking.NewLotID(ctx.Param("lotID"))
	if err != nil {
		handler.respondError(ctx, operation, err)
		return principal{}, parking.Lot{}, false
	}
	lot, err := handler.service.GetLot(ctx.Request.Context(), lotID)
	if err != nil {
		handler.respondError(ctx, operation, err)
		return principal{}, parking.Lot{}, false
	}
	patrols, err := handler.patrols(ctx, caller, lot.ID)
	if err != nil {
		handler.respondError(ctx, operation, err)
		return principal{}, parking.Lot{}, false
	}
	if err := caller.authorizeLot(requested, lot, patrols); err != nil {
		handler.respondError(ctx, operation, err)
		return principal{}, parking.Lot{}, false
	}
	return caller, lot, true
}

// patrols reports whether a warden caller is assigned to the lot.
func (handler *httpHandler) patrols(ctx *gin.Context, caller principal, lotID parking.LotID) (bool, error) {
	if !caller.has(parking.RoleWarden) {
		return false, nil
	}
	return handler.service.IsWardenOf(ctx.Request.Context(), caller.accountID, lotID)
}

func (handler *httpHandler) handleLotSessions(ctx *gin.Context) {
	_, lot, ok := handler.lotInScope(ctx, actionViewLotSessions, "lot sessions")
	if !ok {
		return
	}
	sessions, err := handler.service.ListLotSessions(ctx.Request.Context(), lot.ID)
	if err != nil {
		handler.respondError(ctx, "lot sessions", err)
		return
	}
	payload := make([]sessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, newSessionPayload(session))
	}
	ctx.JSON(http.StatusOK, gin.H{"lot_id": lot.ID.String(), "sessions": payload})
}

func (handler *httpHandler) handleAssignWarden(ctx *gin.Context) {
	caller, lot, ok := handler.lotInScope(ctx, actionManageWardens, "assign warden")
	if !ok {
		return
	}
	var request assignWardenRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	wardenID, err := parking.NewAccountID(request.AccountID)
	if err != nil {
		handler.respondError(ctx, "assign warden", err)
		return
	}
	if err := handler.service.AssignWarden(ctx.Request.Context(), caller.accountID, lot.ID, wardenID); err != nil {
		handler.respondError(ctx, "assign warden", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"lot_id": lot.ID.String(), "account_id": wardenID.String()})
}

func (handler *httpHandler) handleLotWardens(ctx *gin.Context) {
	_, lot, ok := handler.lotInScope(ctx, actionManageWardens, "lot wardens")
	if !ok {
		return
	}
	wardens, err := handler.service.LotWardens(ctx.Request.Context(), lot.ID)
	if err != nil {
		handler.respondError(ctx, "lot wardens", err)
		return
	}
	accountIDs := make([]string, 0, len(wardens))
	for _, wardenID := range wardens {
		accountIDs = append(accountIDs, wardenID.String())
	}
	ctx.JSON(http.StatusOK, gin.H{"lot_id": lot.ID.String(), "wardens": accountIDs})
}

func (handler *httpHandler) handleCreateSession(ctx *gin.Context) {
	caller, ok := handler.authorized(ctx, actionCreateSession)
	if !ok {
		return
	}
	var request createSessionRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	lotID, err := parking.NewLotID(ctx.Param("lotID"))
	if err != nil {
		handler.respondError(ctx, "create session", err)
		return
	}
	plate, err := parking.NewPlate(request.Plate)
	if err != nil {
		handler.respondError(ctx, "create session", err)
		return
	}
	metadata, err := parking.NewMetadataJSON(string(request.Metadata))
	if err != nil {
		handler.respondError(ctx, "create session", err)
		return
	}
	duration, err := sessionDuration(request.DurationHours)
	if err != nil {
		handler.respondError(ctx, "create session", err)
		return
	}
	receipt, err := handler.service.CreateSession(ctx.Request.Context(), caller.accountID, lotID, plate, duration, metadata)
	if err != nil {
		handler.respondError(ctx, "create session", err)
		return
	}
	ctx.JSON(http.StatusCreated, newReceiptPayload(receipt))
}

// sessionDuration converts fractional hours, rejecting values outside (0, MaxSessionDuration].
func sessionDuration(hours float64) (time.Duration, error) {
	if !(hours > 0) || hours > parking.MaxSessionDuration.Hours() {
		return 0, fmt.Errorf("%w: duration_hours must be in (0, %g], got %g", parking.ErrInvalidDuration, parking.MaxSessionDuration.Hours(), hours)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// sessionInScope loads the session and its lot and applies the per-session rules.
func (handler *httpHandler) sessionInScope(ctx *gin.Context, requested action, operation string) (parking.Session, bool) {
	caller, ok := handler.authorized(ctx, requested)
	if !ok {
		return parking.Session{}, false
	}
	sessionID, err := parking.NewSessionID(ctx.Param("sessionID"))
	if err != nil {
		handler.respondError(ctx, operation, err)
		return parking.Session{}, false
	}
	session, err := handler.service.GetSession(ctx.Request.Context(), sessionID)
	if err != nil {
		handler.respondError(ctx, operation, err)
		return parking.Session{}, false
	}
	lot, err := handler.service.GetLot(ctx.Request.Context(), session.LotID)
	if err != nil {
		handler.respondError(ctx, operation, err)
		return parking.Session{}, false
	}
	patrols, err := handler.patrols(ctx, caller, lot.ID)
	if err != nil {
		handler.respondError(ctx, operation, err)
		return parking.Session{}, false
	}
	if err := caller.authorizeSession(requested, session, lot, patrols); err != nil {
		handler.respondError(ctx, operation, err)
		return parking.Session{}, false
	}
	return session, true
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	session, ok := handler.sessionInScope(ctx, actionViewSession, "session")
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session": newSessionPayload(session)})
}

func (handler *httpHandler) handleReviseSession(ctx *gin.Context) {
	session, ok := handler.sessionInScope(ctx, actionReviseSession, "revise session")
	if !ok {
		return
	}
	var request reviseSessionRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	if request.EndsAt == nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "ends_at is required"))
		return
	}
	receipt, err := handler.service.ReviseSessionEnd(ctx.Request.Context(), session.ID, *request.EndsAt)
	if err != nil {
		handler.respondError(ctx, "revise session", err)
		return
	}
	ctx.JSON(http.StatusOK, newReceiptPayload(receipt))
}

func (handler *httpHandler) handleCloseSession(ctx *gin.Context) {
	session, ok := handler.sessionInScope(ctx, actionCloseSession, "close session")
	if !ok {
		return
	}
	if err := handler.service.CloseSession(ctx.Request.Context(), session.ID); err != nil {
		handler.respondError(ctx, "close session", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session_id": session.ID.String(), "status": parking.SessionStatusClosed.String()})
}

type openAccountRequest struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

type topUpRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type registerVehicleRequest struct {
	Plate string `json:"plate"`
}

type publishLotRequest struct {
	Name            string `json:"name"`
	TotalSpaces     int    `json:"total_spaces"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

type createSessionRequest struct {
	Plate         string          `json:"plate"`
	DurationHours float64         `json:"duration_hours"`
	Metadata      json.RawMessage `json:"metadata"`
}

type assignWardenRequest struct {
	AccountID string `json:"account_id"`
}

type reviseSessionRequest struct {
	EndsAt *time.Time `json:"ends_at"`
}

type accountPayload struct {
	AccountID    string `json:"account_id"`
	Role         string `json:"role"`
	Email        string `json:"email"`
	BalanceCents int64  `json:"balance_cents"`
}

func newAccountPayload(account parking.Account) accountPayload {
	return accountPayload{
		AccountID:    account.ID.String(),
		Role:         account.Role.String(),
		Email:        account.Email,
		BalanceCents: account.BalanceCents.Int64(),
	}
}

type vehiclePayload struct {
	VehicleID      string  `json:"vehicle_id"`
	Plate          string  `json:"plate"`
	OwnerAccountID string  `json:"owner_account_id"`
	CurrentLotID   *string `json:"current_lot_id"`
}

func newVehiclePayload(vehicle parking.Vehicle) vehiclePayload {
	payload := vehiclePayload{
		VehicleID:      vehicle.ID.String(),
		Plate:          vehicle.Plate.String(),
		OwnerAccountID: vehicle.OwnerAccountID.String(),
	}
	if vehicle.CurrentLotID != nil {
		lotID := vehicle.CurrentLotID.String()
		payload.CurrentLotID = &lotID
	}
	return payload
}

type lotPayload struct {
	LotID           string `json:"lot_id"`
	OwnerAccountID  string `json:"owner_account_id"`
	Name            string `json:"name"`
	TotalSpaces     int    `json:"total_spaces"`
	OccupiedSpaces  int    `json:"occupied_spaces"`
	FreeSpaces      int    `json:"free_spaces"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	RevenueCents    int64  `json:"revenue_cents"`
}

func newLotPayload(lot parking.Lot) lotPayload {
	return lotPayload{
		LotID:           lot.ID.String(),
		OwnerAccountID:  lot.OwnerAccountID.String(),
		Name:            lot.Name,
		TotalSpaces:     lot.TotalSpaces,
		OccupiedSpaces:  lot.OccupiedSpaces,
		FreeSpaces:      lot.FreeSpaces(),
		HourlyRateCents: lot.HourlyRateCents.Int64(),
		RevenueCents:    lot.RevenueCents.Int64(),
	}
}

type receiptPayload struct {
	SessionID   string    `json:"session_id"`
	LotID       string    `json:"lot_id"`
	Plate       string    `json:"plate"`
	AmountCents int64     `json:"amount_cents"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

func newReceiptPayload(receipt parking.SessionReceipt) receiptPayload {
	return receiptPayload{
		SessionID:   receipt.SessionID.String(),
		LotID:       receipt.LotID.String(),
		Plate:       receipt.Plate.String(),
		AmountCents: receipt.AmountCents.Int64(),
		StartsAt:    receipt.StartsAt,
		EndsAt:      receipt.EndsAt,
	}
}

type sessionPayload struct {
	SessionID   string          `json:"session_id"`
	LotID       string          `json:"lot_id"`
	VehicleID   string          `json:"vehicle_id"`
	AccountID   string          `json:"account_id"`
	Status      string          `json:"status"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	AmountCents int64           `json:"amount_cents"`
	Metadata    json.RawMessage `json:"metadata"`
	ClosedAt    *time.Time      `json:"closed_at"`
}

func newSessionPayload(session parking.Session) sessionPayload {
	return sessionPayload{
		SessionID:   session.ID.String(),
		LotID:       session.LotID.String(),
		VehicleID:   session.VehicleID.String(),
		AccountID:   session.AccountID.String(),
		Status:      session.Status.String(),
		StartsAt:    session.StartsAt,
		EndsAt:      session.EndsAt,
		AmountCents: session.AmountCents.Int64(),
		Metadata:    json.RawMessage(session.Metadata.String()),
		ClosedAt:    session.ClosedAt,
	}
}
