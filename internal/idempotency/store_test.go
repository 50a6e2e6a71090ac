package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/aap/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.IdempotencyRecord{}))
	return NewGormStore(db)
}

func backends(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"gorm":   func() Store { return newSQLiteStore(t) },
	}
}

func TestStore_ClaimOnce(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			ctx := context.Background()

			winner, claimed, err := store.Claim(ctx, "bob~main", "k1", "msg-1")
			require.NoError(t, err)
			assert.True(t, claimed)
			assert.Equal(t, "msg-1", winner)

			winner, claimed, err = store.Claim(ctx, "bob~main", "k1", "msg-2")
			require.NoError(t, err)
			assert.False(t, claimed)
			assert.Equal(t, "msg-1", winner)

			id, found, err := store.Lookup(ctx, "bob~main", "k1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "msg-1", id)
		})
	}
}

func TestStore_ScopedPerRecipient(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			ctx := context.Background()

			_, claimed, err := store.Claim(ctx, "bob~main", "shared", "msg-1")
			require.NoError(t, err)
			assert.True(t, claimed)

			winner, claimed, err := store.Claim(ctx, "carol~main", "shared", "msg-2")
			require.NoError(t, err)
			assert.True(t, claimed)
			assert.Equal(t, "msg-2", winner)
		})
	}
}

func TestStore_LookupMissing(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id, found, err := newStore().Lookup(context.Background(), "bob~main", "nope")

			require.NoError(t, err)
			assert.False(t, found)
			assert.Empty(t, id)
		})
	}
}

func TestStore_ReleaseOnlyOwnClaim(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			ctx := context.Background()

			_, _, err := store.Claim(ctx, "bob~main", "k1", "msg-1")
			require.NoError(t, err)

			require.NoError(t, store.Release(ctx, "bob~main", "k1", "msg-other"))
			_, found, err := store.Lookup(ctx, "bob~main", "k1")
			require.NoError(t, err)
			assert.True(t, found)

			require.NoError(t, store.Release(ctx, "bob~main", "k1", "msg-1"))
			_, found, err = store.Lookup(ctx, "bob~main", "k1")
			require.NoError(t, err)
			assert.False(t, found)

			winner, claimed, err := store.Claim(ctx, "bob~main", "k1", "msg-3")
			require.NoError(t, err)
			assert.True(t, claimed)
			assert.Equal(t, "msg-3", winner)
		})
	}
}

func TestStore_RejectsEmptyKey(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			_, _, err := store.Claim(context.Background(), "bob~main", "", "msg-1")
			assert.ErrorIs(t, err, ErrEmptyKey)
			_, _, err = store.Lookup(context.Background(), "", "k")
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

func TestStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			const n = 16
			var wg sync.WaitGroup
			winners := make(chan string, n)
			claims := make(chan bool, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					winner, claimed, err := store.Claim(context.Background(), "bob~main", "race", fmt.Sprintf("msg-%d", i))
					assert.NoError(t, err)
					winners <- winner
					claims <- claimed
				}(i)
			}
			wg.Wait()
			close(winners)
			close(claims)

			claimedCount := 0
			for c := range claims {
				if c {
					claimedCount++
				}
			}
			assert.Equal(t, 1, claimedCount)

			var first string
			for w := range winners {
				if first == "" {
					first = w
				}
				assert.Equal(t, first, w)
			}
		})
	}
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "aap:idem:bob~main:abc", redisKey("bob~main", "abc"))
}

func TestMemoryStore_Len(t *testing.T) {
	store := NewMemoryStore()
	_, _, _ = store.Claim(context.Background(), "a~b", "k1", "m1")
	_, _, _ = store.Claim(context.Background(), "a~b", "k2", "m2")

	assert.Equal(t, 2, store.Len())
}

func TestGormStore_PurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, _, err := store.Claim(ctx, "bob~main", "old", "m1")
	require.NoError(t, err)
	require.NoError(t, store.db.Model(&models.IdempotencyRecord{}).
		Where("idem_key = ?", "old").
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	_, _, err = store.Claim(ctx, "bob~main", "fresh", "m2")
	require.NoError(t, err)

	n, err := store.PurgeBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, found, err := store.Lookup(ctx, "bob~main", "old")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = store.Lookup(ctx, "bob~main", "fresh")
	require.NoError(t, err)
	assert.True(t, found)
}
