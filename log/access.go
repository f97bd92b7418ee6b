package log

import (
	"go.uber.org/zap"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/ports"
)

// AccessLog writes one structured entry per completed request.
type AccessLog struct {
	logger *zap.Logger
}

// NewAccessLog returns an access logger writing through logger.
func NewAccessLog(logger *zap.Logger) *AccessLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessLog{logger: logger}
}

// LogRequest implements ports.AccessLogger.
func (a *AccessLog) LogRequest(rec entities.AccessRecord) {
	fields := []zap.Field{
		zap.String("requestId", rec.RequestID),
		zap.String("protocol", rec.Protocol),
		zap.String("method", rec.Method),
		zap.String("uri", rec.URI),
		zap.String("remoteAddr", rec.RemoteAddr),
		zap.Int("status", rec.Status),
		zap.Int64("responseSize", rec.ResponseSize),
		zap.Int("slot", rec.Slot),
		zap.Duration("lat", rec.Duration()),
	}
	if rec.Resumes > 0 {
		fields = append(fields, zap.Int("resumes", rec.Resumes))
	}
	if rec.Error != nil {
		fields = append(fields, zap.String("error", rec.Error.Message), zap.String("errorType", rec.Error.Type),
			zap.String("errorReason", rec.Error.Reason()))
		a.logger.Warn("request", fields...)
		return
	}
	a.logger.Info("request", fields...)
}

// MultiAccessLogger fans a record out to several access loggers.
type MultiAccessLogger []ports.AccessLogger

// LogRequest implements ports.AccessLogger.
func (m MultiAccessLogger) LogRequest(rec entities.AccessRecord) {
	for _, l := range m {
		if l != nil {
			l.LogRequest(rec)
		}
	}
}
