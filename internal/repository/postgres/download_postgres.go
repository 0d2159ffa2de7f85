package postgres

import (
	"context"
	"database/sql"

	"appstore/internal/model"
	"appstore/internal/repository"
)

// DownloadPostgres is a PostgreSQL implementation of repository.DownloadRepository.
type DownloadPostgres struct {
	db *sql.DB
}

// NewDownloadPostgres creates a new DownloadPostgres repository.
func NewDownloadPostgres(db *sql.DB) *DownloadPostgres {
	return &DownloadPostgres{db: db}
}

var _ repository.DownloadRepository = (*DownloadPostgres)(nil)

// Create inserts a download event.
func (r *DownloadPostgres) Create(ctx context.Context, d *model.Download) (*model.Download, error) {
	const q = `
		INSERT INTO downloads (id, app_id, user_id, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	out := *d
	if err := r.db.QueryRowContext(ctx, q,
		d.ID,
		d.AppID,
		nullString(d.UserID),
		d.IP,
		d.UserAgent,
		d.CreatedAt,
	).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByApp returns an application's downloads, newest first.
func (r *DownloadPostgres) ListByApp(ctx context.Context, appID string) ([]model.Download, error) {
	const q = `
		SELECT id, app_id, user_id, ip, user_agent, created_at
		FROM downloads
		WHERE app_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.query(ctx, q, appID)
}

// ListByDeveloper returns the downloads of all applications owned by developerID.
func (r *DownloadPostgres) ListByDeveloper(ctx context.Context, developerID string) ([]model.Download, error) {
	const q = `
		SELECT d.id, d.app_id, d.user_id, d.ip, d.user_agent, d.created_at
		FROM downloads d
		JOIN apps a ON a.id = d.app_id
		WHERE a.developer_id = $1
		ORDER BY d.created_at DESC, d.id DESC
	`
	return r.query(ctx, q, developerID)
}

func (r *DownloadPostgres) query(ctx context.Context, q string, arg any) ([]model.Download, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Download, 0)
	for rows.Next() {
		var (
			d      model.Download
			userID sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.AppID, &userID, &d.IP, &d.UserAgent, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.UserID = userID.String
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
