package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/eventcollector/internal/domain"
	"example.com/eventcollector/internal/metrics"
)

// Response statuses
const (
	StatusOK    = "OK"
	StatusError = "error"
)

// Request is one submission: normalised (lower-case) header names mapped to
// their first value, and the raw body bytes the signature covers.
type Request struct {
	Headers map[string]string
	Body    []byte
}

// Response is the envelope returned to the collector. Info holds the ordered
// sequence values, echoed as submitted, on success and the failure message otherwise.
type Response struct {
	Status string `json:"status"`
	Info   any    `json:"info"`
}

// Pipeline is the submission handler: header validation, supporter
// resolution, signature verification, then concurrent artifact persistence.
type Pipeline struct {
	escalator *Escalator
	registry  *Registry
	writer    *Writer
	versions  *VersionRecorder // optional
	verify    func(publicKey, signature string, body []byte) bool
	log       zerolog.Logger
}

func NewPipeline(escalator *Escalator, registry *Registry, writer *Writer, versions *VersionRecorder, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		escalator: escalator,
		registry:  registry,
		writer:    writer,
		versions:  versions,
		verify:    VerifySignature,
		log:       log,
	}
}

// Process runs one submission to completion. It never returns an error:
// every failure is folded into a StatusError response.
func (p *Pipeline) Process(ctx context.Context, req Request) Response {
	start := time.Now()
	results, outcome, err := p.run(ctx, req)
	metrics.RecordSubmission(outcome, time.Since(start))

	if err != nil {
		p.log.Info().Err(err).Str("outcome", outcome).Msg("event submission ignored")
		return Response{Status: StatusError, Info: err.Error()}
	}
	return Response{Status: StatusOK, Info: results}
}

func (p *Pipeline) run(ctx context.Context, req Request) (results []domain.Sequence, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, outcome, err = nil, "panic", fmt.Errorf("internal error: %v", r)
		}
	}()

	h, err := ParseHeaders(req.Headers, RequiredHeaders)
	if err != nil {
		var mh *domain.MissingHeadersError
		if errors.As(err, &mh) {
			return nil, "missing_headers", p.escalator.Escalate(ctx, "header parsing, missing", strings.Join(mh.Missing, ", "))
		}
		return nil, "missing_headers", p.escalator.Escalate(ctx, "header parsing", err)
	}

	s, err := p.registry.Resolve(ctx, h.ClientID, h.PublicKey)
	if err != nil {
		return nil, "store_error", fmt.Errorf("resolve supporter: %w", err)
	}

	// s.PublicKey is the stored key; it equals the claimed one because the
	// supporter was looked up by it.
	if !p.verify(s.PublicKey, h.Signature, req.Body) {
		p.log.Debug().Str("signature", h.Signature).Str("public_key", s.PublicKey).Str("client_id", s.ClientID).Msg("verification failed")
		return nil, "bad_signature", domain.ErrSignatureMismatch
	}

	if s.Version != h.Version {
		p.log.Debug().Str("client_id", s.ClientID).Str("from", s.Version).Str("to", h.Version).Msg("supporter version upgrade")
	}
	s.Version = h.Version
	if p.versions != nil && !p.versions.Record(s) {
		p.log.Warn().Str("client_id", s.ClientID).Msg("version queue full, update dropped")
	}

	var items []domain.Item
	if err := json.Unmarshal(req.Body, &items); err != nil {
		return nil, "invalid_batch", fmt.Errorf("decode batch: %w", err)
	}
	if err := domain.ValidateItems(items); err != nil {
		return nil, "invalid_batch", err
	}

	if err := p.writer.EnsurePartition(ctx); err != nil {
		p.log.Warn().Err(err).Msg("ensure blob partition")
	}

	results, err = p.saveAll(ctx, items, s)
	if err != nil {
		return nil, "store_error", err
	}
	return results, "ok", nil
}

// saveAll writes every item concurrently and waits for all of them. Results
// are positional. On failure, items already written stay written.
func (p *Pipeline) saveAll(ctx context.Context, items []domain.Item, s domain.Supporter) ([]domain.Sequence, error) {
	results := make([]domain.Sequence, len(items))
	saved := make([]bool, len(items))

	var g errgroup.Group
	for i := range items {
		i := i // per-iteration copy (go directive < 1.22)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("save item %d: panic: %v", i, r)
				}
			}()
			seq, err := p.writer.Save(ctx, items[i], s)
			if err != nil {
				return err
			}
			results[i] = seq
			saved[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var committed []string
		for i, ok := range saved {
			if ok {
				committed = append(committed, string(results[i]))
			}
		}
		if len(committed) > 0 {
			metrics.RecordOrphanedArtifacts(len(committed))
			p.log.Warn().Strs("committed", committed).Int("batch", len(items)).Msg("batch failed after partial persistence")
		}
		return nil, err
	}
	return results, nil
}
