package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appstore/internal/config"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "app", Name: "appstore"}
	with := func(mut func(*config.DatabaseConfig)) config.DatabaseConfig {
		c := base
		mut(&c)
		return c
	}

	tests := []struct {
		name    string
		cfg     config.DatabaseConfig
		want    string
		missing string
	}{
		{name: "minimal", cfg: base, want: "postgres://app@db:5432/appstore?application_name=appstore"},
		{
			name: "password and sslmode",
			cfg:  with(func(c *config.DatabaseConfig) { c.Password = "pass"; c.SSLMode = "disable" }),
			want: "postgres://app:pass@db:5432/appstore?application_name=appstore&sslmode=disable",
		},
		{
			name: "reserved characters in password",
			cfg:  with(func(c *config.DatabaseConfig) { c.Password = "p@ss/word" }),
			want: "postgres://app:p%40ss%2Fword@db:5432/appstore?application_name=appstore",
		},
		{name: "no host", cfg: with(func(c *config.DatabaseConfig) { c.Host = "" }), missing: "DB_HOST"},
		{name: "no port", cfg: with(func(c *config.DatabaseConfig) { c.Port = "" }), missing: "DB_PORT"},
		{name: "no user", cfg: with(func(c *config.DatabaseConfig) { c.User = "" }), missing: "DB_USER"},
		{name: "no name", cfg: with(func(c *config.DatabaseConfig) { c.Name = "" }), missing: "DB_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildPostgresDSN(tt.cfg)
			if tt.missing != "" {
				assert.ErrorContains(t, err, tt.missing)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return db, err }
	t.Cleanup(func() { sqlOpen = orig })
}

func TestNewPostgres(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "app",
		Name:               "appstore",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}
	ctx := context.Background()

	t.Run("connects and pings", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		stubOpen(t, db, nil)
		log, hook := test.NewNullLogger()

		mock.ExpectPing()

		got, err := NewPostgres(ctx, cfg, log)
		require.NoError(t, err)
		assert.Same(t, db, got)
		assert.Equal(t, 10, got.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, "db_connected", hook.LastEntry().Data["event"])
	})

	t.Run("open fails", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))
		log, _ := test.NewNullLogger()

		got, err := NewPostgres(ctx, cfg, log)
		assert.ErrorContains(t, err, "sql open: open error")
		assert.Nil(t, got)
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, nil)
		log, hook := test.NewNullLogger()

		mock.ExpectPing().WillReturnError(errors.New("ping failed"))

		got, err := NewPostgres(ctx, cfg, log)
		assert.ErrorContains(t, err, "db ping: ping failed")
		assert.Nil(t, got)
		assert.Empty(t, hook.AllEntries())
	})

	t.Run("invalid config", func(t *testing.T) {
		log, _ := test.NewNullLogger()
		got, err := NewPostgres(ctx, config.DatabaseConfig{}, log)
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestRegisterStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterStats(reg, db))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "go_sql_max_open_connections")

	assert.Error(t, RegisterStats(reg, db), "duplicate registration")
}
