// Package oplog writes booking operation logs through zap.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger implements booking.OperationLogger.
type Logger struct {
	logger *zap.Logger
}

// New wraps logger. A nil logger discards everything.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("booking")}
}

// LogOperation records one entry at info, or at warn when it carries an error.
func (operationLogger *Logger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := make([]zap.Field, 0, 8)
	fields = append(fields, zap.String("operation", entry.Operation), zap.String("status", entry.Status))
	fields = appendNonEmpty(fields, "actor_id", entry.ActorID)
	fields = appendNonEmpty(fields, "request_id", entry.RequestID)
	fields = appendNonEmpty(fields, "quote_id", entry.QuoteID)
	fields = appendNonEmpty(fields, "reservation_id", entry.ReservationID)
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	level := zapcore.InfoLevel
	if entry.Error != nil {
		level = zapcore.WarnLevel
		fields = append(fields, zap.Error(entry.Error))
	}
	if checked := operationLogger.logger.Check(level, "booking operation"); checked != nil {
		checked.Write(fields...)
	}
}

func appendNonEmpty(fields []zap.Field, key string, value string) []zap.Field {
	if value == "" {
		return fields
	}
	return append(fields, zap.String(key, value))
}
