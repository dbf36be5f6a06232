package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

const (
	// DefaultTTL bounds how long a balance may be served after a missed invalidation
	DefaultTTL = 10 * time.Minute

	// KeyPrefix is the prefix for balance cache keys
	KeyPrefix = "balance:"
)

// BalanceCache is a Redis-backed ledger.BalanceCache
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewBalanceCache creates a balance cache with the default TTL
func NewBalanceCache(client *redis.Client, log *logger.Logger) *BalanceCache {
	return NewBalanceCacheWithTTL(client, DefaultTTL, log)
}

// NewBalanceCacheWithTTL creates a balance cache with a custom TTL
func NewBalanceCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *BalanceCache {
	return &BalanceCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "balance_cache"),
	}
}

// cachedBalance is the stored form; amounts are decimal strings
type cachedBalance struct {
	CompanyID  uuid.UUID `json:"company_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Debit      string    `json:"debit"`
	Credit     string    `json:"credit"`
	Balance    string    `json:"balance"`
	ComputedAt time.Time `json:"computed_at"`
}

// Key returns the cache key of an account balance
func Key(companyID, accountID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, companyID, accountID)
}

func encode(b *ledger.AccountBalance) ([]byte, error) {
	data, err := json.Marshal(cachedBalance{
		CompanyID:  b.CompanyID,
		AccountID:  b.AccountID,
		Debit:      b.Debit.String(),
		Credit:     b.Credit.String(),
		Balance:    b.Balance.String(),
		ComputedAt: b.ComputedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal balance: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*ledger.AccountBalance, error) {
	var cached cachedBalance
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached balance: %w", err)
	}

	b := &ledger.AccountBalance{
		CompanyID:  cached.CompanyID,
		AccountID:  cached.AccountID,
		ComputedAt: cached.ComputedAt,
	}
	var err error
	if b.Debit, err = decimal.NewFromString(cached.Debit); err != nil {
		return nil, fmt.Errorf("failed to parse cached debit: %w", err)
	}
	if b.Credit, err = decimal.NewFromString(cached.Credit); err != nil {
		return nil, fmt.Errorf("failed to parse cached credit: %w", err)
	}
	if b.Balance, err = decimal.NewFromString(cached.Balance); err != nil {
		return nil, fmt.Errorf("failed to parse cached balance: %w", err)
	}
	return b, nil
}

// Get returns the cached balance, or (nil, nil) on a miss
func (c *BalanceCache) Get(ctx context.Context, companyID, accountID uuid.UUID) (*ledger.AccountBalance, error) {
	val, err := c.client.Get(ctx, Key(companyID, accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "account_id", accountID)
		return nil, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to get cached balance: %w", err)
	}

	b, err := decode(val)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("cache hit", "account_id", accountID)
	return b, nil
}

// Set stores a balance with the cache TTL
func (c *BalanceCache) Set(ctx context.Context, balance *ledger.AccountBalance) error {
	data, err := encode(balance)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, Key(balance.CompanyID, balance.AccountID), data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "account_id", balance.AccountID, "error", err)
		return fmt.Errorf("failed to set cached balance: %w", err)
	}
	return nil
}

// Invalidate drops the cached balances of the given accounts
func (c *BalanceCache) Invalidate(ctx context.Context, companyID uuid.UUID, accountIDs ...uuid.UUID) error {
	if len(accountIDs) == 0 {
		return nil
	}

	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = Key(companyID, id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("cache error", "operation", "invalidate", "company_id", companyID, "error", err)
		return fmt.Errorf("failed to invalidate cached balances: %w", err)
	}
	return nil
}

// Clear removes every cached balance of a company
func (c *BalanceCache) Clear(ctx context.Context, companyID uuid.UUID) error {
	pattern := fmt.Sprintf("%s%s:*", KeyPrefix, companyID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	return iter.Err()
}

var _ ledger.BalanceCache = (*BalanceCache)(nil)
