package postgresdb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/regform/internal/models"
)

// Set TEST_DATABASE_DSN (e.g. "host=localhost user=regform password=regform dbname=regform sslmode=disable")
// to run these tests against a disposable database.
func newTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	databaseDSN := os.Getenv("TEST_DATABASE_DSN")
	if databaseDSN == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	db, err := New(context.Background(), databaseDSN, 10*time.Second, WithDBPreReset(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestPostgresDB(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))
	assert.Empty(t, db.LoadAll(ctx))

	first := &models.Record{
		Account:          &models.Account{Username: "ann", Password: "secret1"},
		Email:            "ann@x.com",
		RegistrationDate: "2024-05-01T10:00:00.000Z",
	}
	require.NoError(t, db.Insert(ctx, first, nil))
	assert.NotEmpty(t, first.ID)

	errTaken := errors.New("taken")
	err := db.Insert(ctx, &models.Record{Account: &models.Account{Username: "ann"}}, func(existing []models.Record) error {
		if len(existing) > 0 {
			return errTaken
		}
		return nil
	})
	assert.ErrorIs(t, err, errTaken)

	records := db.LoadAll(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, *first, records[0])

	contact := models.Record{
		ID:      "42",
		Contact: &models.Contact{FirstName: "Bob", LastName: "Stone"},
		Email:   "bob@x.com",
	}
	require.True(t, db.SaveAll(ctx, []models.Record{contact}))

	records = db.LoadAll(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, contact, records[0])
}
