package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taxledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyDocumentWriteOrg = "taxledger:documents:write:org:%s"
	keySeedLock         = "taxledger:ledger:seed:lock:%s"
)

// DocumentLimiter throttles document creation per organization and
// serializes chart seeding. A nil or disabled limiter allows everything.
type DocumentLimiter struct {
	enabled bool
	client  redis.UniversalClient
	bucket  *TokenBucket
	locker  *Locker
	log     *zap.Logger

	rate    float64
	burst   int
	lockTTL time.Duration
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Cfg       config.Config
	Log       *zap.Logger
}

func NewDocumentLimiter(p Params) (*DocumentLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return client.Close() },
		})
	}

	return New(client, limitCfg, p.Log)
}

// New builds an enabled limiter over an existing redis client.
func New(client redis.UniversalClient, limitCfg config.RateLimitConfig, log *zap.Logger) (*DocumentLimiter, error) {
	if client == nil {
		return nil, ErrNotConfigured
	}
	if limitCfg.DocumentWriteRate <= 0 || limitCfg.DocumentWriteBurst <= 0 {
		return nil, ErrInvalidLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	lockTTL := limitCfg.SeedLockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &DocumentLimiter{
		enabled: true,
		client:  client,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		log:     log.Named("ratelimit"),
		rate:    limitCfg.DocumentWriteRate,
		burst:   limitCfg.DocumentWriteBurst,
		lockTTL: lockTTL,
	}, nil
}

func (l *DocumentLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowDocumentWrite takes one token from the organization's bucket.
func (l *DocumentLimiter) AllowDocumentWrite(ctx context.Context, orgID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyDocumentWriteOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}

// WithSeedLock runs fn while holding the organization's seed lock. It
// reports false without calling fn when another holder has the lock. When
// redis is unreachable fn runs unlocked; seeding is idempotent.
func (l *DocumentLimiter) WithSeedLock(ctx context.Context, orgID string, fn func(context.Context) error) (bool, error) {
	if !l.Enabled() {
		return true, fn(ctx)
	}

	key := fmt.Sprintf(keySeedLock, strings.TrimSpace(orgID))
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil {
		l.log.Warn("seed lock unavailable, seeding without lock", zap.String("org_id", orgID), zap.Error(err))
		return true, fn(ctx)
	}
	if !ok {
		return false, nil
	}
	defer func() {
		if err := l.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			l.log.Warn("release seed lock failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}()
	return true, fn(ctx)
}
