package meter

import (
	"log/slog"

	"github.com/ineyio/ledgergate"
)

// LogMeter logs transition events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ ledgergate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnTransition(e ledgergate.TransitionEvent) {
	if e.Success {
		m.Logger.Info("transition",
			"id", e.ID,
			"op", e.Op,
			"charge", e.Charge,
			"duration_ms", e.Duration.Milliseconds(),
		)
		return
	}

	attrs := []any{
		"id", e.ID,
		"op", e.Op,
		"duration_ms", e.Duration.Milliseconds(),
		"error", e.Err,
	}
	if code, ok := ledgergate.ErrorCode(e.Err); ok {
		attrs = append(attrs, "code", code)
	}
	m.Logger.Warn("transition_rejected", attrs...)
}
