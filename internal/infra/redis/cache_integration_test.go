//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
	"github.com/kislikjeka/grandlivre/pkg/money"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func balance(companyID uuid.UUID, amount string) *ledger.AccountBalance {
	return &ledger.AccountBalance{
		CompanyID:  companyID,
		AccountID:  uuid.New(),
		Debit:      money.MustParse(amount),
		Credit:     money.Zero,
		Balance:    money.MustParse(amount),
		ComputedAt: time.Now().UTC(),
	}
}

func TestBalanceCache_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewBalanceCache(setupRedis(t), logger.Nop())
	companyID := uuid.New()

	got, err := cache.Get(ctx, companyID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	b := balance(companyID, "150.25")
	require.NoError(t, cache.Set(ctx, b))

	got, err = cache.Get(ctx, companyID, b.AccountID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "150.25", money.Format(got.Balance))

	require.NoError(t, cache.Invalidate(ctx, companyID, b.AccountID))
	got, err = cache.Get(ctx, companyID, b.AccountID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBalanceCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache := NewBalanceCacheWithTTL(setupRedis(t), time.Second, logger.Nop())

	b := balance(uuid.New(), "10")
	require.NoError(t, cache.Set(ctx, b))

	assert.Eventually(t, func() bool {
		got, err := cache.Get(ctx, b.CompanyID, b.AccountID)
		return err == nil && got == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestBalanceCache_ClearOnlyTouchesCompany(t *testing.T) {
	ctx := context.Background()
	cache := NewBalanceCache(setupRedis(t), logger.Nop())

	mine := uuid.New()
	other := uuid.New()
	a := balance(mine, "1")
	b := balance(mine, "2")
	c := balance(other, "3")
	for _, x := range []*ledger.AccountBalance{a, b, c} {
		require.NoError(t, cache.Set(ctx, x))
	}

	require.NoError(t, cache.Clear(ctx, mine))

	got, err := cache.Get(ctx, mine, a.AccountID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = cache.Get(ctx, other, c.AccountID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
