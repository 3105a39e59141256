// Package oplog renders parking operation logs with zap.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/parking/pkg/parking"
	"go.uber.org/zap"
)

const operationMessage = "parking operation"

// Logger implements parking.OperationLogger.
type Logger struct {
	logger *zap.Logger
}

// New wraps a zap logger. A nil logger is replaced with a no-op.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("operations")}
}

// LogOperation writes one entry. Failures log at warn level.
func (logger *Logger) LogOperation(_ context.Context, entry parking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if value := entry.AccountID.String(); value != "" {
		fields = append(fields, zap.String("account_id", value))
	}
	if value := entry.LotID.String(); value != "" {
		fields = append(fields, zap.String("lot_id", value))
	}
	if value := entry.SessionID.String(); value != "" {
		fields = append(fields, zap.String("session_id", value))
	}
	if value := entry.Plate.String(); value != "" {
		fields = append(fields, zap.String("plate", value))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Attempts > 1 {
		fields = append(fields, zap.Int("attempts", entry.Attempts))
	}
	if entry.Error != nil {
		logger.logger.Warn(operationMessage, append(fields, zap.Error(entry.Error))...)
		return
	}
	logger.logger.Info(operationMessage, fields...)
}
