package repository

import (
	"context"

	"appstore/internal/model"
)

// DownloadRepository persists download events.
type DownloadRepository interface {
	Create(ctx context.Context, d *model.Download) (*model.Download, error)

	// ListByApp returns the downloads of one application, newest first.
	ListByApp(ctx context.Context, appID string) ([]model.Download, error)

	// ListByDeveloper returns the downloads of every application owned by the developer.
	ListByDeveloper(ctx context.Context, developerID string) ([]model.Download, error)
}
