package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMigrated_Skip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	log, hook := test.NewNullLogger()

	mock.ExpectQuery("SELECT to_regclass").
		WithArgs(sentinelTable).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, EnsureMigrated(context.Background(), db, log, "db.local"))
	assert.NoError(t, mock.ExpectationsWereMet())

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "db_migration_skip", last.Data["event"])
	assert.Equal(t, "db.local", last.Data["db_host"])
}

func TestEnsureMigrated_RunsAllSteps(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	mock.ExpectQuery("SELECT to_regclass($1) IS NOT NULL").
		WithArgs(sentinelTable).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	for _, step := range steps {
		mock.ExpectExec(step.SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureMigrated(context.Background(), db, log, "db.local"))
	assert.NoError(t, mock.ExpectationsWereMet())

	var applied int
	for _, e := range hook.AllEntries() {
		if e.Data["event"] == "db_migration_step" {
			applied++
		}
	}
	assert.Equal(t, len(steps), applied)
	assert.Equal(t, "db_migration_success", hook.LastEntry().Data["event"])
}

func TestEnsureMigrated_StepFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	log, hook := test.NewNullLogger()

	mock.ExpectQuery("SELECT to_regclass($1) IS NOT NULL").
		WithArgs(sentinelTable).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(steps[0].SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(steps[1].SQL).WillReturnError(errors.New("permission denied"))

	err = EnsureMigrated(context.Background(), db, log, "db.local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), steps[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())

	last := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, steps[1].Name, last.Data["migration_step"])
}

func TestEnsureMigrated_CheckFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	log, _ := test.NewNullLogger()

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("connection refused"))

	err = EnsureMigrated(context.Background(), db, log, "db.local")
	assert.ErrorContains(t, err, "sentinel table")
}

func TestStepsEndWithSentinel(t *testing.T) {
	var last string
	for _, s := range steps {
		if len(s.Name) > len("create_table_") && s.Name[:len("create_table_")] == "create_table_" {
			last = s.Name
		}
	}
	assert.Equal(t, "create_table_downloads", last)
}
