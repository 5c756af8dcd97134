package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/entities"
)

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := NewDatabase(config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, "sqlite", db.Driver)
	require.NoError(t, db.Ping(context.Background()))

	for _, model := range []any{
		&entities.User{},
		&entities.Student{},
		&entities.Staff{},
		&entities.Vendor{},
		&entities.FeeRenewal{},
		&entities.Notification{},
		&entities.Payment{},
		&entities.Expense{},
	} {
		assert.True(t, db.DB.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestNewDatabase_Errors(t *testing.T) {
	_, err := NewDatabase(config.Database{Driver: "oracle"})
	assert.Error(t, err)

	_, err = NewDatabase(config.Database{Driver: "postgres"})
	assert.ErrorContains(t, err, "DATABASE_DSN")
}

func TestDatabase_PingAfterClose(t *testing.T) {
	db, err := NewDatabase(config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "closed.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.Error(t, db.Ping(context.Background()))
}
