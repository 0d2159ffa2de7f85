package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appstore/internal/model"
)

var downloadCols = []string{"id", "app_id", "user_id", "ip", "user_agent", "created_at"}

func TestDownloadPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDownloadPostgres(db)
	now := time.Now().UTC()

	t.Run("anonymous download stores NULL user", func(t *testing.T) {
		d := &model.Download{ID: "d-1", AppID: "app-1", IP: "10.0.0.1", UserAgent: "curl", CreatedAt: now}
		mock.ExpectQuery("INSERT INTO downloads").
			WithArgs("d-1", "app-1", nil, "10.0.0.1", "curl", now).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("d-1", now))

		got, err := repo.Create(context.Background(), d)

		require.NoError(t, err)
		assert.Equal(t, "d-1", got.ID)
		assert.Empty(t, got.UserID)
	})

	t.Run("authenticated download", func(t *testing.T) {
		d := &model.Download{ID: "d-2", AppID: "app-1", UserID: "u-1", CreatedAt: now}
		mock.ExpectQuery("INSERT INTO downloads").
			WithArgs("d-2", "app-1", "u-1", "", "", now).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("d-2", now))

		got, err := repo.Create(context.Background(), d)

		require.NoError(t, err)
		assert.Equal(t, "u-1", got.UserID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadPostgres_ListByApp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDownloadPostgres(db)

	rows := sqlmock.NewRows(downloadCols).
		AddRow("d-2", "app-1", "u-1", "10.0.0.2", "okhttp", time.Now()).
		AddRow("d-1", "app-1", nil, "10.0.0.1", "curl", time.Now().Add(-time.Minute))
	mock.ExpectQuery("FROM downloads WHERE app_id = ?").
		WithArgs("app-1").
		WillReturnRows(rows)

	items, err := repo.ListByApp(context.Background(), "app-1")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "u-1", items[0].UserID)
	assert.Empty(t, items[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadPostgres_ListByDeveloper(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDownloadPostgres(db)

	mock.ExpectQuery("JOIN apps a ON a.id = d.app_id WHERE a.developer_id = ?").
		WithArgs("dev-1").
		WillReturnRows(sqlmock.NewRows(downloadCols))

	items, err := repo.ListByDeveloper(context.Background(), "dev-1")

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
