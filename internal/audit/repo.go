package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists and queries audit entries in PostgreSQL. The
// audit_log table carries a CHECK constraint mirroring EntityRef
// exclusivity: at most one of file_id/record_id is set.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert appends one entry. Entries are never updated or deleted.
func (s *PGStore) Insert(ctx context.Context, entry Entry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (action, actor_id, file_id, record_id, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		string(entry.Action),
		optionalInt8(entry.ActorID),
		optionalInt8(entry.Ref.FileID),
		optionalInt8(entry.Ref.RecordID),
		detail,
		optionalText(entry.IP),
		optionalText(entry.UserAgent),
		optionalTimestamptz(entry.At),
	)
	return err
}

// TimelineWindow returns one page of entries, newest first. The caller
// passes limit = pageSize+1 to detect whether a next page exists.
func (s *PGStore) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, action, actor_id, file_id, record_id, detail, ip_address, user_agent, created_at
		FROM audit_log
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		  AND ($3::text IS NULL OR action = $3)
		  AND ($4::bigint IS NULL OR actor_id = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6`,
		optionalTimestamptz(filters.From),
		optionalTimestamptz(filters.To),
		optionalText(filters.Action),
		optionalInt8(filters.ActorID),
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTimelineRows(rows)
}

// TimelineAll returns every matching entry without paging, for exports.
func (s *PGStore) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, action, actor_id, file_id, record_id, detail, ip_address, user_agent, created_at
		FROM audit_log
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		  AND ($3::text IS NULL OR action = $3)
		  AND ($4::bigint IS NULL OR actor_id = $4)
		ORDER BY created_at DESC, id DESC`,
		optionalTimestamptz(filters.From),
		optionalTimestamptz(filters.To),
		optionalText(filters.Action),
		optionalInt8(filters.ActorID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTimelineRows(rows)
}

func scanTimelineRows(rows pgx.Rows) ([]TimelineRow, error) {
	var result []TimelineRow
	for rows.Next() {
		var (
			row       TimelineRow
			actorID   pgtype.Int8
			fileID    pgtype.Int8
			recordID  pgtype.Int8
			ip        pgtype.Text
			userAgent pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&row.ID, &row.Action, &actorID, &fileID, &recordID, &row.Detail, &ip, &userAgent, &createdAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			row.ActorID = &actorID.Int64
		}
		if fileID.Valid {
			row.FileID = &fileID.Int64
		}
		if recordID.Valid {
			row.RecordID = &recordID.Int64
		}
		row.IP = ip.String
		row.UserAgent = userAgent.String
		if createdAt.Valid {
			row.CreatedAt = createdAt.Time
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func optionalInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func optionalText(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func optionalTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

var _ Store = (*PGStore)(nil)
