package alarm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"example.com/eventcollector/internal/domain"
)

// Reporter delivers one alarm.
type Reporter interface {
	ReportAlarm(ctx context.Context, a domain.Alarm) error
}

type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// Breaker stops calling an unhealthy reporter after FailureThreshold
// consecutive failures and fails fast with gobreaker.ErrOpenState until
// Timeout has passed.
type Breaker struct {
	next Reporter
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(next Reporter, cfg BreakerConfig, log zerolog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        "alarms",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("alarm circuit breaker state change")
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *Breaker) ReportAlarm(ctx context.Context, a domain.Alarm) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.ReportAlarm(ctx, a)
	})
	return err
}

func (b *Breaker) State() string { return b.cb.State().String() }
