package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/domain"
	"example.com/eventcollector/internal/metrics"
)

// AlarmCaller identifies this component in alarms.
const AlarmCaller = "events"

// Escalator forwards failures to the alarm channel before they are surfaced.
type Escalator struct {
	alarms AlarmReporter
	log    zerolog.Logger
	now    func() time.Time
}

func NewEscalator(alarms AlarmReporter, log zerolog.Logger) *Escalator {
	return &Escalator{alarms: alarms, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Escalate reports what/info as an alarm and returns the *domain.EscalatedError
// the caller must fail with. A failed delivery is logged and does not change
// the returned error.
func (e *Escalator) Escalate(ctx context.Context, what string, info any) error {
	detail := fmt.Sprint(info)
	e.log.Warn().Str("what", what).Str("info", detail).Msg("error detected and raised")

	alarm := domain.Alarm{Caller: AlarmCaller, What: what, Info: detail, Time: e.now()}
	if err := e.report(ctx, alarm); err != nil {
		metrics.RecordAlarm(false)
		e.log.Error().Err(err).Str("what", what).Msg("alarm delivery failed")
	} else {
		metrics.RecordAlarm(true)
	}
	return &domain.EscalatedError{What: what, Info: detail}
}

func (e *Escalator) report(ctx context.Context, a domain.Alarm) (err error) {
	if e.alarms == nil {
		return fmt.Errorf("no alarm reporter configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("alarm reporter panic: %v", r)
		}
	}()
	return e.alarms.ReportAlarm(ctx, a)
}
