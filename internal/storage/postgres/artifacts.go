package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/eventcollector/internal/domain"
)

// InsertArtifact stores one artifact record. The sequence value is kept as
// submitted in incremental_raw; incremental holds its integer projection, or
// NULL when there is none. An id collision surfaces as
// domain.ErrDuplicateArtifact.
func (db *DB) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	_, err := db.Pool.Exec(ctx, `
INSERT INTO artifacts (id, href, is_video, video_id, blob_path, incremental, incremental_raw,
                       client_id, public_key, tag_id, client_time, saving_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Href, a.IsVideo, nullString(a.VideoID), a.BlobPath, nullSequence(a.Incremental), nullString(string(a.Incremental)),
		a.ClientID, a.PublicKey, nullString(a.TagID), nullTime(a.ClientTime), a.SavingTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateArtifact
		}
		return err
	}
	return nil
}

func nullSequence(q domain.Sequence) *int64 {
	n, ok := q.Int64()
	if !ok {
		return nil
	}
	return &n
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
