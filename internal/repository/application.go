package repository

import (
	"context"

	"appstore/internal/model"
)

// ApplicationRepository defines data access for application listings using SQL queries only.
// No business logic here, only persistence.
type ApplicationRepository interface {
	// Create inserts a new application row. Returns ErrDuplicate if the title is taken.
	Create(ctx context.Context, app *model.Application) (*model.Application, error)

	// FindByID returns the application with its developer name and download count.
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// FindByTitle is used to reject duplicate titles before any asset is written.
	FindByTitle(ctx context.Context, title string) (*model.Application, error)

	// FindByPackageURL resolves a stored package URL back to its application.
	FindByPackageURL(ctx context.Context, apkURL string) (*model.Application, error)

	// List returns summaries ordered by creation time, newest first.
	List(ctx context.Context, q ListQuery) (*PageResult[model.ApplicationSummary], error)

	// ListByDeveloper returns every application owned by the developer, newest first.
	ListByDeveloper(ctx context.Context, developerID string) ([]model.Application, error)

	// Delete removes the row; downloads cascade. Returns ErrNotFound if nothing was deleted.
	Delete(ctx context.Context, id string) error
}

// ListQuery narrows an application listing. An empty Category matches all.
type ListQuery struct {
	PageQuery
	Category string
}
