package alarm

import (
	"context"

	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/domain"
)

// LogReporter writes alarms to the log. Used when no broker is configured.
type LogReporter struct {
	log zerolog.Logger
}

func NewLogReporter(log zerolog.Logger) *LogReporter { return &LogReporter{log: log} }

func (r *LogReporter) ReportAlarm(_ context.Context, a domain.Alarm) error {
	r.log.Error().
		Str("caller", a.Caller).
		Str("what", a.What).
		Str("info", a.Info).
		Time("alarm_time", a.Time).
		Msg("alarm")
	return nil
}
