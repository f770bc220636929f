// Package sessionpostgres stores editing sessions and their notifications in Postgres
package sessionpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, s *model.Session) error {
	query := `INSERT INTO sessions (session_uid, source_key, content_type, size, variant, state, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.DB.Master.ExecContext(ctx, query, s.UID, s.SourceKey, s.ContentType, s.Size, s.Variant, s.State, s.CreatedAt, s.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT session_uid, source_key, content_type, size, variant, state, created_at, updated_at
	FROM sessions
	WHERE session_uid = $1`
	var s model.Session

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&s.UID,
		&s.SourceKey,
		&s.ContentType,
		&s.Size,
		&s.Variant,
		&s.State,
		&s.CreatedAt,
		&s.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrSessionNotFound
		default:
			return nil, err // 500
		}
	}
	return &s, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Session, error) {
	// Sort и Order уже провалидированы сервисом - в запрос попадают только известные значения
	query := fmt.Sprintf(`SELECT session_uid, content_type, size, variant, state, created_at, updated_at
	FROM sessions
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	sessions := make([]model.Session, 0, req.Limit)
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.UID,
			&s.ContentType,
			&s.Size,
			&s.Variant,
			&s.State,
			&s.CreatedAt,
			&s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return sessions, nil
}

func (p PostgresRepo) SaveState(ctx context.Context, id string, st editor.State) error {
	query := `UPDATE sessions SET state = $1, updated_at = now() WHERE session_uid = $2`
	res, err := p.DB.Master.ExecContext(ctx, query, model.StateJSON(st), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p PostgresRepo) UpdateSource(ctx context.Context, id string, key string, cType string, size int64) error {
	query := `UPDATE sessions SET source_key = $1, content_type = $2, size = $3, updated_at = now() WHERE session_uid = $4`
	res, err := p.DB.Master.ExecContext(ctx, query, key, cType, size, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("Failed to rollback delete-tx for session %q: %v", id, err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE session_uid = $1`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_uid = $1`, id)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	return tx.Commit()
}

// FetchOrphans - сессии с висящим флагом пресета, которые давно не обновлялись (процесс умер посреди таймера)
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT session_uid
	FROM sessions
	WHERE ((state->'flags'->>'auto_enhance_running')::boolean IS TRUE
	OR (state->'flags'->>'retouch_running')::boolean IS TRUE)
	AND updated_at < now() - interval '1 minute'
	LIMIT $1`

	rows, err := p.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

// SaveNotification is idempotent: kafka may redeliver the same message.
func (p PostgresRepo) SaveNotification(ctx context.Context, n *model.Notification) error {
	query := `INSERT INTO notifications (session_uid, kind, title, description, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (session_uid, kind, created_at) DO NOTHING
	RETURNING id`

	err := p.DB.QueryRowContext(ctx, query, n.SessionUID, n.Kind, n.Title, n.Description, n.CreatedAt).Scan(&n.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

func (p PostgresRepo) ListNotifications(ctx context.Context, sessionID string, limit int) ([]model.Notification, error) {
	query := `SELECT id, session_uid, kind, title, description, created_at
	FROM notifications
	WHERE session_uid = $1
	ORDER BY created_at DESC
	LIMIT $2`

	rows, err := p.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	res := make([]model.Notification, 0, limit)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.SessionUID, &n.Kind, &n.Title, &n.Description, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return res, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrSessionNotFound // 404
	}
	return nil
}
