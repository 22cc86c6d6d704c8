package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/eventcollector/internal/domain"
)

const uniqueViolation = "23505"

// FindSupporters returns every record for the identity, oldest key first.
func (db *DB) FindSupporters(ctx context.Context, clientID, publicKey string) ([]domain.Supporter, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT client_id, public_key, key_time, version
FROM supporters
WHERE client_id = $1 AND public_key = $2
ORDER BY key_time ASC, id ASC`, clientID, publicKey)
	if err != nil {
		return nil, fmt.Errorf("query supporters: %w", err)
	}
	defer rows.Close()

	var out []domain.Supporter
	for rows.Next() {
		var s domain.Supporter
		if err := rows.Scan(&s.ClientID, &s.PublicKey, &s.KeyTime, &s.Version); err != nil {
			return nil, fmt.Errorf("scan supporter: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertSupporter creates a record. A concurrent insert of the same identity
// surfaces as domain.ErrDuplicateSupporter.
func (db *DB) InsertSupporter(ctx context.Context, s domain.Supporter) error {
	_, err := db.Pool.Exec(ctx, `
INSERT INTO supporters (client_id, public_key, key_time, version)
VALUES ($1, $2, $3, $4)`, s.ClientID, s.PublicKey, s.KeyTime, s.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateSupporter
		}
		return fmt.Errorf("insert supporter: %w", err)
	}
	return nil
}

// UpdateSupporterVersions writes all updates in one round trip and returns
// the number of rows changed.
func (db *DB) UpdateSupporterVersions(ctx context.Context, updates []domain.VersionUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, u := range updates {
		b.Queue(`
UPDATE supporters SET version = $3, updated_at = now()
WHERE client_id = $1 AND public_key = $2 AND version IS DISTINCT FROM $3`, u.ClientID, u.PublicKey, u.Version)
	}

	br := db.Pool.SendBatch(ctx, b)
	defer br.Close()

	var affected int64
	for range updates {
		ct, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("update version: %w", err)
		}
		affected += ct.RowsAffected()
	}
	return affected, nil
}
