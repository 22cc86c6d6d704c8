package postgres

import (
	"context"
	"fmt"
	"time"
)

type StatsTotals struct {
	Count            int64 `json:"count"`
	UniqueSupporters int64 `json:"unique_supporters"`
}

type StatsBucket struct {
	BucketStart      int64 `json:"bucket_start"`
	Count            int64 `json:"count"`
	UniqueSupporters int64 `json:"unique_supporters"`
}

// videoOnly nil means no filter.
func statsFilter(from, to time.Time, videoOnly *bool) (string, []any) {
	cond := "WHERE saving_time >= $1 AND saving_time <= $2"
	args := []any{from, to}
	if videoOnly != nil {
		cond += " AND is_video = $3"
		args = append(args, *videoOnly)
	}
	return cond, args
}

func (db *DB) QueryTotals(ctx context.Context, from, to time.Time, videoOnly *bool) (StatsTotals, error) {
	var res StatsTotals
	cond, args := statsFilter(from, to, videoOnly)

	sql := "SELECT COUNT(*)::bigint, COUNT(DISTINCT (client_id, public_key))::bigint FROM artifacts " + cond
	if err := db.Pool.QueryRow(ctx, sql, args...).Scan(&res.Count, &res.UniqueSupporters); err != nil {
		return res, fmt.Errorf("scan totals: %w", err)
	}
	return res, nil
}

func (db *DB) QueryBucketsDaily(ctx context.Context, from, to time.Time, videoOnly *bool) ([]StatsBucket, error) {
	cond, args := statsFilter(from, to, videoOnly)

	sql := fmt.Sprintf(`
SELECT
  EXTRACT(EPOCH FROM date_trunc('day', saving_time AT TIME ZONE 'UTC'))::bigint AS bucket_start,
  COUNT(*)::bigint AS cnt,
  COUNT(DISTINCT (client_id, public_key))::bigint AS uniq
FROM artifacts
%s
GROUP BY 1
ORDER BY 1 ASC`, cond)

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsBucket
	for rows.Next() {
		var b StatsBucket
		if err := rows.Scan(&b.BucketStart, &b.Count, &b.UniqueSupporters); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
