package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/eventcollector/internal/artifact"
	"example.com/eventcollector/internal/domain"
	"example.com/eventcollector/internal/metrics"
)

// Writer persists one batch item as a metadata record plus a payload blob.
type Writer struct {
	records ArtifactStore
	blobs   BlobStore
	root    string
	log     zerolog.Logger
	now     func() time.Time
	salt    func() uint16
}

func NewWriter(records ArtifactStore, blobs BlobStore, root string, log zerolog.Logger, now func() time.Time) *Writer {
	if root == "" {
		root = artifact.DefaultRoot
	}
	return &Writer{
		records: records,
		blobs:   blobs,
		root:    root,
		log:     log,
		now:     now,
		salt:    func() uint16 { return uint16(rand.Intn(0x10000)) },
	}
}

// EnsurePartition makes sure today's blob directory exists. Calling it again
// on the same day is a no-op.
func (w *Writer) EnsurePartition(ctx context.Context) error {
	return w.blobs.EnsureDirectory(ctx, artifact.Partition(w.root, w.now()))
}

// Save writes the record and the blob concurrently and waits for both. It
// returns the item's sequence value once both writes succeeded. A failure
// of either write fails the item; the other write is not undone.
func (w *Writer) Save(ctx context.Context, item domain.Item, s domain.Supporter) (domain.Sequence, error) {
	now := w.now()
	a := w.build(item, s, now)

	w.log.Debug().
		Str("incremental", string(a.Incremental)).
		Str("video_id", a.VideoID).
		Str("client_id", a.ClientID).
		Str("path", a.BlobPath).
		Int("bytes", len(item.Element)).
		Msg("saving artifact")

	var g errgroup.Group
	g.Go(func() error {
		if err := w.records.InsertArtifact(ctx, a); err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := w.blobs.WriteFile(ctx, a.BlobPath, []byte(item.Element)); err != nil {
			return fmt.Errorf("write blob %s: %w", a.BlobPath, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.RecordArtifactFailed(a.IsVideo)
		return "", err
	}

	metrics.RecordArtifactSaved()
	return a.Incremental, nil
}

func (w *Writer) build(item domain.Item, s domain.Supporter, now time.Time) domain.Artifact {
	id := artifact.DeriveID(s.ClientID, item.Element, w.salt())
	isVideo, videoID := artifact.DetectVideo(item.Href)
	return domain.Artifact{
		ID:          id,
		Href:        item.Href,
		IsVideo:     isVideo,
		VideoID:     videoID,
		BlobPath:    artifact.BlobPath(w.root, now, id),
		Incremental: item.Incremental,
		ClientID:    s.ClientID,
		PublicKey:   s.PublicKey,
		TagID:       item.TagID,
		ClientTime:  item.ClientTime.Time(),
		SavingTime:  now,
	}
}
