package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"appstore/internal/model"
	"appstore/internal/repository"
)

// ApplicationPostgres is a PostgreSQL implementation of repository.ApplicationRepository.
type ApplicationPostgres struct {
	db *sql.DB
}

// NewApplicationPostgres creates a new ApplicationPostgres repository.
func NewApplicationPostgres(db *sql.DB) *ApplicationPostgres {
	return &ApplicationPostgres{db: db}
}

var _ repository.ApplicationRepository = (*ApplicationPostgres)(nil)

// appSelect projects a full application row plus its owner's name and download count.
const appSelect = `
		SELECT a.id, a.title, a.description, a.category, a.version, a.is_free, a.price::float8,
		       a.icon_url, a.apk_url, a.screenshots, a.developer_id, a.created_at, u.name,
		       (SELECT COUNT(*) FROM downloads d WHERE d.app_id = a.id) AS download_count
		FROM apps a
		JOIN users u ON u.id = a.developer_id`

// Create inserts a new application row and returns the stored record.
func (r *ApplicationPostgres) Create(ctx context.Context, app *model.Application) (*model.Application, error) {
	shots := app.Screenshots
	if shots == nil {
		shots = []string{}
	}
	shotsJSON, err := json.Marshal(shots)
	if err != nil {
		return nil, fmt.Errorf("encode screenshots: %w", err)
	}

	const q = `
		INSERT INTO apps (id, title, description, category, version, is_free, price,
		                  icon_url, apk_url, screenshots, developer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	out := *app
	out.Screenshots = shots
	err = r.db.QueryRowContext(ctx, q,
		app.ID,
		app.Title,
		app.Description,
		app.Category,
		app.Version,
		app.IsFree,
		app.Price,
		nullString(app.IconURL),
		nullString(app.APKURL),
		string(shotsJSON),
		app.DeveloperID,
		app.CreatedAt,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single application by its ID.
func (r *ApplicationPostgres) FindByID(ctx context.Context, id string) (*model.Application, error) {
	return r.findOne(ctx, appSelect+` WHERE a.id = $1`, id)
}

// FindByTitle fetches a single application by its unique title.
func (r *ApplicationPostgres) FindByTitle(ctx context.Context, title string) (*model.Application, error) {
	return r.findOne(ctx, appSelect+` WHERE a.title = $1`, title)
}

// FindByPackageURL fetches the application whose package is stored under apkURL.
func (r *ApplicationPostgres) FindByPackageURL(ctx context.Context, apkURL string) (*model.Application, error) {
	return r.findOne(ctx, appSelect+` WHERE a.apk_url = $1`, apkURL)
}

func (r *ApplicationPostgres) findOne(ctx context.Context, q string, arg any) (*model.Application, error) {
	app, err := scanApplication(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return app, nil
}

// List returns application summaries using LIMIT/OFFSET pagination and a total count.
func (r *ApplicationPostgres) List(ctx context.Context, lq repository.ListQuery) (*repository.PageResult[model.ApplicationSummary], error) {
	const qCount = `SELECT COUNT(*) FROM apps a WHERE ($1 = '' OR a.category = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, lq.Category).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT a.id, a.title, a.category, a.version, a.is_free, a.price::float8, a.icon_url,
		       a.developer_id, u.name,
		       (SELECT COUNT(*) FROM downloads d WHERE d.app_id = a.id) AS download_count,
		       a.created_at
		FROM apps a
		JOIN users u ON u.id = a.developer_id
		WHERE ($1 = '' OR a.category = $1)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, lq.Category, lq.Limit, lq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ApplicationSummary, 0)
	for rows.Next() {
		var (
			s       model.ApplicationSummary
			icon    sql.NullString
			devName string
		)
		if err := rows.Scan(
			&s.ID,
			&s.Title,
			&s.Category,
			&s.Version,
			&s.IsFree,
			&s.Price,
			&icon,
			&s.DeveloperID,
			&devName,
			&s.DownloadCount,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.IconURL = icon.String
		s.Developer = &model.DeveloperRef{Name: devName}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.ApplicationSummary]{
		Items: items,
		Total: total,
	}, nil
}

// ListByDeveloper returns the developer's applications, newest first.
func (r *ApplicationPostgres) ListByDeveloper(ctx context.Context, developerID string) ([]model.Application, error) {
	q := appSelect + ` WHERE a.developer_id = $1 ORDER BY a.created_at DESC, a.id DESC`
	rows, err := r.db.QueryContext(ctx, q, developerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return apps, nil
}

// Delete removes an application by ID. Download rows are removed by ON DELETE CASCADE.
func (r *ApplicationPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM apps WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		app       model.Application
		icon, apk sql.NullString
		shots     []byte
		devName   string
	)
	if err := row.Scan(
		&app.ID,
		&app.Title,
		&app.Description,
		&app.Category,
		&app.Version,
		&app.IsFree,
		&app.Price,
		&icon,
		&apk,
		&shots,
		&app.DeveloperID,
		&app.CreatedAt,
		&devName,
		&app.DownloadCount,
	); err != nil {
		return nil, err
	}
	app.IconURL = icon.String
	app.APKURL = apk.String
	app.Developer = &model.DeveloperRef{Name: devName}
	app.Screenshots = []string{}
	if len(shots) > 0 {
		if err := json.Unmarshal(shots, &app.Screenshots); err != nil {
			return nil, fmt.Errorf("decode screenshots: %w", err)
		}
	}
	return &app, nil
}
