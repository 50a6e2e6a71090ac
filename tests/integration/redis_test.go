//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/welldanyogia/aap/internal/idempotency"
)

// RedisIntegrationTestSuite runs the Redis idempotency store against a real
// Redis server
type RedisIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	rdb       *redis.Client
}

func (s *RedisIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(s.T(), err)

	opts, err := redis.ParseURL(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(s.T(), err)
	s.rdb = redis.NewClient(opts)
	require.NoError(s.T(), s.rdb.Ping(ctx).Err())
}

func (s *RedisIntegrationTestSuite) TearDownSuite() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisIntegrationTestSuite) SetupTest() {
	s.rdb.FlushDB(context.Background())
}

func TestRedisIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIntegrationTestSuite))
}

func (s *RedisIntegrationTestSuite) TestClaimLookupRelease() {
	ctx := context.Background()
	store := idempotency.NewRedisStore(s.rdb, time.Hour)

	winner, claimed, err := store.Claim(ctx, "bob~main", "k1", "m1")
	require.NoError(s.T(), err)
	assert.True(s.T(), claimed)
	assert.Equal(s.T(), "m1", winner)

	winner, claimed, err = store.Claim(ctx, "bob~main", "k1", "m2")
	require.NoError(s.T(), err)
	assert.False(s.T(), claimed)
	assert.Equal(s.T(), "m1", winner)

	// scoped per recipient
	_, claimed, err = store.Claim(ctx, "carol~main", "k1", "m3")
	require.NoError(s.T(), err)
	assert.True(s.T(), claimed)

	require.NoError(s.T(), store.Release(ctx, "bob~main", "k1", "m2"))
	_, found, err := store.Lookup(ctx, "bob~main", "k1")
	require.NoError(s.T(), err)
	assert.True(s.T(), found)

	require.NoError(s.T(), store.Release(ctx, "bob~main", "k1", "m1"))
	_, found, err = store.Lookup(ctx, "bob~main", "k1")
	require.NoError(s.T(), err)
	assert.False(s.T(), found)
}

func (s *RedisIntegrationTestSuite) TestRecordsExpire() {
	ctx := context.Background()
	store := idempotency.NewRedisStore(s.rdb, time.Hour)

	_, _, err := store.Claim(ctx, "bob~main", "k1", "m1")
	require.NoError(s.T(), err)

	ttl, err := s.rdb.TTL(ctx, "aap:idem:bob~main:k1").Result()
	require.NoError(s.T(), err)
	assert.Greater(s.T(), ttl, 59*time.Minute)
}

func (s *RedisIntegrationTestSuite) TestZeroTTLNeverExpires() {
	ctx := context.Background()
	store := idempotency.NewRedisStore(s.rdb, 0)

	_, _, err := store.Claim(ctx, "bob~main", "k1", "m1")
	require.NoError(s.T(), err)

	ttl, err := s.rdb.TTL(ctx, "aap:idem:bob~main:k1").Result()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), time.Duration(-1), ttl)
}

func (s *RedisIntegrationTestSuite) TestConcurrentClaimsHaveOneWinner() {
	ctx := context.Background()
	store := idempotency.NewRedisStore(s.rdb, time.Hour)

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claims  int
		winners = map[string]struct{}{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winner, claimed, err := store.Claim(ctx, "bob~main", "race", fmt.Sprintf("m%d", i))
			if !assert.NoError(s.T(), err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if claimed {
				claims++
			}
			winners[winner] = struct{}{}
		}(i)
	}
	wg.Wait()

	assert.Equal(s.T(), 1, claims)
	assert.Len(s.T(), winners, 1)
}
