package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/aap/internal/database"
	"github.com/welldanyogia/aap/internal/idempotency"
)

func TestStartPurge(t *testing.T) {
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.Migrate(db))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormStore := idempotency.NewGormStore(db)
	assert.True(t, startPurge(ctx, gormStore, time.Hour))
	assert.False(t, startPurge(ctx, gormStore, 0), "zero ttl keeps records forever")
	assert.False(t, startPurge(ctx, idempotency.NewMemoryStore(), time.Hour))
}
