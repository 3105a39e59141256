// Package httpapi exposes the parking core over HTTP behind tauth sessions.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey = "auth_claims"
	shutdownTimeout  = 5 * time.Second
)

// ParkingService is the part of *parking.Service the API drives.
type ParkingService interface {
	OpenAccount(ctx context.Context, accountID parking.AccountID, role parking.Role, email string) (parking.Account, error)
	GetAccount(ctx context.Context, accountID parking.AccountID) (parking.Account, error)
	TopUp(ctx context.Context, accountID parking.AccountID, amount parking.AmountCents) (parking.Account, error)
	RegisterVehicle(ctx context.Context, ownerID parking.AccountID, plate parking.Plate) (parking.Vehicle, error)
	PublishLot(ctx context.Context, ownerID parking.AccountID, name string, totalSpaces int, rate parking.HourlyRateCents) (parking.Lot, error)
	GetLot(ctx context.Context, lotID parking.LotID) (parking.Lot, error)
	CreateSession(ctx context.Context, accountID parking.AccountID, lotID parking.LotID, plate parking.Plate, duration time.Duration, metadata parking.MetadataJSON) (parking.SessionReceipt, error)
	ReviseSessionEnd(ctx context.Context, sessionID parking.SessionID, newEndsAt time.Time) (parking.SessionReceipt, error)
	CloseSession(ctx context.Context, sessionID parking.SessionID) error
	GetSession(ctx context.Context, sessionID parking.SessionID) (parking.Session, error)
	ListLots(ctx context.Context) ([]parking.Lot, error)
	ListLotSessions(ctx context.Context, lotID parking.LotID) ([]parking.Session, error)
	AssignWarden(ctx context.Context, ownerID parking.AccountID, lotID parking.LotID, wardenID parking.AccountID) error
	LotWardens(ctx context.Context, lotID parking.LotID) ([]parking.AccountID, error)
	IsWardenOf(ctx context.Context, wardenID parking.AccountID, lotID parking.LotID) (bool, error)
}

// Run serves the API until ctx is cancelled. A nil bucket disables rate limiting.
func Run(ctx context.Context, cfg Config, service ParkingService, bucket TokenBucket, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}

	handler := &httpHandler{
		logger:  logger.Named("httpapi"),
		service: service,
		bucket:  bucket,
	}
	router := setupRouter(cfg, handler, sessionValidator)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("parking api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey))
	api.Use(requestTimeout(cfg.RequestTimeout))

	api.POST("/account", handler.handleOpenAccount)
	api.GET("/account", handler.handleAccount)
	api.POST("/account/topups", handler.handleTopUp)
	api.POST("/vehicles", handler.handleRegisterVehicle)
	api.POST("/lots", handler.handlePublishLot)
	api.GET("/lots", handler.handleLots)
	api.GET("/lots/:lotID", handler.handleLot)
	api.GET("/lots/:lotID/sessions", handler.handleLotSessions)
	api.POST("/lots/:lotID/wardens", handler.handleAssignWarden)
	api.GET("/lots/:lotID/wardens", handler.handleLotWardens)
	api.POST("/lots/:lotID/sessions", rateLimit(handler.bucket, handler.logger), handler.handleCreateSession)
	api.GET("/sessions/:sessionID", handler.handleSession)
	api.PATCH("/sessions/:sessionID", handler.handleReviseSession)
	api.DELETE("/sessions/:sessionID", handler.handleCloseSession)

	return router
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

// validationErrors are caller mistakes reported as 400.
var validationErrors = []error{
	parking.ErrInvalidDuration,
	parking.ErrInvalidAccountID,
	parking.ErrInvalidLotID,
	parking.ErrInvalidVehicleID,
	parking.ErrInvalidSessionID,
	parking.ErrInvalidPlate,
	parking.ErrInvalidRole,
	parking.ErrInvalidAmountCents,
	parking.ErrInvalidHourlyRate,
	parking.ErrInvalidSpaces,
	parking.ErrInvalidEmail,
	parking.ErrInvalidLotName,
	parking.ErrInvalidMetadataJSON,
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingClaims):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, parking.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, parking.ErrLotFull):
		return http.StatusConflict, "lot_full"
	case errors.Is(err, parking.ErrSessionClosed):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, parking.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, parking.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, parking.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, parking.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	}
	for _, validationErr := range validationErrors {
		if errors.Is(err, validationErr) {
			return http.StatusBadRequest, "invalid_request"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (handler *httpHandler) respondError(ctx *gin.Context, operation string, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error(operation+" failed", zap.Error(err))
		ctx.JSON(status, errorResponse(code, operation+" failed"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
