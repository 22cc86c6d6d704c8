package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/domain"
	"example.com/eventcollector/internal/metrics"
)

// VersionRecorder persists supporter version updates off the request path.
// Updates are queued and written in batches; a full queue drops the update.
type VersionRecorder struct {
	queue        chan domain.VersionUpdate
	store        VersionStore
	batchMaxSize int
	batchMaxWait time.Duration
	log          zerolog.Logger
	done         chan struct{}
}

func NewVersionRecorder(store VersionStore, queueMaxSize, batchMaxSize int, batchMaxWait time.Duration, log zerolog.Logger) *VersionRecorder {
	return &VersionRecorder{
		queue:        make(chan domain.VersionUpdate, queueMaxSize),
		store:        store,
		batchMaxSize: batchMaxSize,
		batchMaxWait: batchMaxWait,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left.
func (vr *VersionRecorder) Start(ctx context.Context) {
	go func() {
		defer close(vr.done)

		batch := make([]domain.VersionUpdate, 0, vr.batchMaxSize)
		t := time.NewTimer(vr.batchMaxWait)
		defer t.Stop()

		resetTimer := func() {
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(vr.batchMaxWait)
		}

		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				resetTimer()
				return
			}
			updates := latestPerIdentity(batch)
			affected, err := vr.store.UpdateSupporterVersions(ctx, updates)
			if err != nil {
				metrics.RecordVersionUpdates("failed", len(updates))
				vr.log.Error().Err(err).Int("dropped", len(updates)).Msg("version update batch failed")
			} else {
				metrics.RecordVersionUpdates("written", len(updates))
				vr.log.Debug().Int64("updated", affected).Int("size", len(updates)).Msg("version update batch written")
			}
			batch = batch[:0]
			resetTimer()
		}

		for {
			select {
			case <-ctx.Done():
			drain:
				for {
					select {
					case u := <-vr.queue:
						batch = append(batch, u)
					default:
						break drain
					}
				}
				fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				flush(fctx)
				cancel()
				return
			case u := <-vr.queue:
				batch = append(batch, u)
				if len(batch) >= vr.batchMaxSize {
					flush(ctx)
				}
			case <-t.C:
				flush(ctx)
			}
		}
	}()
}

// Done is closed once the recorder has stopped and flushed.
func (vr *VersionRecorder) Done() <-chan struct{} { return vr.done }

// Record queues the supporter's current version. It never blocks.
func (vr *VersionRecorder) Record(s domain.Supporter) bool {
	u := domain.VersionUpdate{ClientID: s.ClientID, PublicKey: s.PublicKey, Version: s.Version}
	select {
	case vr.queue <- u:
		return true
	default:
		metrics.RecordVersionUpdates("dropped", 1)
		return false
	}
}

// latestPerIdentity keeps the last queued version of each identity,
// preserving first-seen order.
func latestPerIdentity(batch []domain.VersionUpdate) []domain.VersionUpdate {
	type key struct{ clientID, publicKey string }
	idx := make(map[key]int, len(batch))
	out := make([]domain.VersionUpdate, 0, len(batch))
	for _, u := range batch {
		k := key{u.ClientID, u.PublicKey}
		if i, ok := idx[k]; ok {
			out[i] = u
			continue
		}
		idx[k] = len(out)
		out = append(out, u)
	}
	return out
}
