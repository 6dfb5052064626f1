package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/cityevents/services/crop-service/internal/cropping"
	"github.com/baechuer/cityevents/services/crop-service/internal/domain"
)

// PlanCache stores resolved render plans in Redis.
type PlanCache struct {
	Client *redis.Client
	ttl    time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *PlanCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &PlanCache{Client: rdb, ttl: ttl}
}

// PlanKey identifies the render plan of a variant for one state of a
// reference's crop configuration under the configuration digest config.
func PlanKey(config string, referenceID int64, variant, fallbackSize string, absolute bool, crop []byte) string {
	sum := sha256.Sum256(crop)
	return fmt.Sprintf("crop:plan:%s:%d:%s:%s:%s:%s",
		config, referenceID, variant, fallbackSize, strconv.FormatBool(absolute), hex.EncodeToString(sum[:12]))
}

// ConfigDigest fingerprints the cropping configuration and render settings
// that plans are resolved with.
func ConfigDigest(settings cropping.RenderSettings, tree *cropping.Tree) string {
	data, err := json.Marshal(struct {
		Settings cropping.RenderSettings
		Tree     *cropping.Tree
	}{settings, tree})
	if err != nil {
		// unencodable configuration never shares plans with another process
		data = []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// Get returns the cached plan. A nil plan without error means "no plan"
// was cached.
func (c *PlanCache) Get(ctx context.Context, key string) (*cropping.RenderPlan, error) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, err
	}
	var plan *cropping.RenderPlan
	if err := json.Unmarshal(val, &plan); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return plan, nil
}

func (c *PlanCache) Set(ctx context.Context, key string, plan *cropping.RenderPlan) error {
	val, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal render plan: %w", err)
	}
	return c.Client.Set(ctx, key, val, c.ttl).Err()
}

func (c *PlanCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *PlanCache) Close() error {
	return c.Client.Close()
}
