package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/domain"
	"example.com/eventcollector/internal/metrics"
)

// Registry resolves supporters, registering unseen identities on first sight.
type Registry struct {
	store SupporterStore
	cache SupporterCache // optional
	log   zerolog.Logger
	now   func() time.Time
}

func NewRegistry(store SupporterStore, cache SupporterCache, log zerolog.Logger, now func() time.Time) *Registry {
	return &Registry{store: store, cache: cache, log: log, now: now}
}

// Resolve returns the supporter registered for (clientID, publicKey),
// creating it when the store has none. If the store holds several matching
// records the first one is used.
//
// A concurrent first request for the same identity surfaces as
// domain.ErrDuplicateSupporter from the store; the winner's record is then
// re-read instead of failing the request.
func (r *Registry) Resolve(ctx context.Context, clientID, publicKey string) (domain.Supporter, error) {
	if s, ok := r.cached(ctx, clientID, publicKey); ok {
		return s, nil
	}

	found, err := r.store.FindSupporters(ctx, clientID, publicKey)
	if err != nil {
		return domain.Supporter{}, err
	}
	if len(found) > 0 {
		if len(found) > 1 {
			r.log.Warn().Str("client_id", clientID).Int("matches", len(found)).Msg("multiple supporters for identity, using first")
		}
		r.fill(ctx, found[0])
		return found[0], nil
	}

	r.log.Debug().Str("client_id", clientID).Msg("new client id + public key combo")
	s := domain.Supporter{ClientID: clientID, PublicKey: publicKey, KeyTime: r.now()}
	err = r.store.InsertSupporter(ctx, s)
	switch {
	case err == nil:
		metrics.RecordSupporterCreated()
	case errors.Is(err, domain.ErrDuplicateSupporter):
		found, err = r.store.FindSupporters(ctx, clientID, publicKey)
		if err != nil {
			return domain.Supporter{}, err
		}
		if len(found) == 0 {
			return domain.Supporter{}, fmt.Errorf("supporter %s reported duplicate but not found", clientID)
		}
		s = found[0]
	default:
		return domain.Supporter{}, err
	}

	r.fill(ctx, s)
	return s, nil
}

func (r *Registry) cached(ctx context.Context, clientID, publicKey string) (domain.Supporter, bool) {
	if r.cache == nil {
		return domain.Supporter{}, false
	}
	s, ok, err := r.cache.Get(ctx, clientID, publicKey)
	if err != nil {
		r.log.Warn().Err(err).Msg("supporter cache get failed")
		return domain.Supporter{}, false
	}
	return s, ok
}

func (r *Registry) fill(ctx context.Context, s domain.Supporter) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, s); err != nil {
		r.log.Warn().Err(err).Msg("supporter cache set failed")
	}
}
