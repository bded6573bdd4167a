package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetFlights returns nil without error on a cache miss.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// releaseSeatScript deletes the hold only while it still belongs to the owner
// that took it.
var releaseSeatScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireSeatLock holds a seat on a flight for ttl on behalf of owner. It
// reports false when another booking already holds it.
func (c *RedisCache) AcquireSeatLock(ctx context.Context, flightID int64, seat, owner string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, seatLockKey(flightID, seat), owner, ttl).Result()
}

// ReleaseSeatLock drops the hold if owner still has it. A hold that expired
// and was taken by someone else is left alone.
func (c *RedisCache) ReleaseSeatLock(ctx context.Context, flightID int64, seat, owner string) error {
	return releaseSeatScript.Run(ctx, c.client, []string{seatLockKey(flightID, seat)}, owner).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func seatLockKey(flightID int64, seat string) string {
	return fmt.Sprintf("lock:flight:%d:seat:%s", flightID, seat)
}
