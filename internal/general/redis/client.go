package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/general/config"
	"courier-dispatch/internal/general/logger"

	"github.com/go-redis/redis/v8"
)

const (
	driverKeyPrefix = "presence:driver:"
	systemFlagsKey  = "system:flags"

	// Snapshots expire on their own so a gateway crash cannot leave ghost
	// drivers online forever.
	snapshotTTL = 5 * time.Minute
)

// Client is the redis-backed hot cache: per-driver presence snapshots for the
// admin map and dispatch checks, plus the system flag hash. Postgres stays the
// source of truth; everything here can be rebuilt from it.
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

// New connects to redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info(ctx, "redis_connect", "connected to redis", map[string]any{"addr": cfg.Redis.Addr})
	return &Client{rdb: rdb, log: log}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetDriverPresence writes one driver's snapshot.
func (c *Client) SetDriverPresence(ctx context.Context, p *presence.DriverPresence) error {
	body, err := json.Marshal(snapshotFrom(p))
	if err != nil {
		return fmt.Errorf("marshal presence snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, driverKeyPrefix+p.DriverID, body, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("set presence snapshot: %w", err)
	}
	return nil
}

// RemoveDriverPresence drops a driver's snapshot on disconnect.
func (c *Client) RemoveDriverPresence(ctx context.Context, driverID string) error {
	if err := c.rdb.Del(ctx, driverKeyPrefix+driverID).Err(); err != nil {
		return fmt.Errorf("delete presence snapshot: %w", err)
	}
	return nil
}

// GetDriverPresence reads one driver's snapshot, nil when absent or expired.
func (c *Client) GetDriverPresence(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	body, err := c.rdb.Get(ctx, driverKeyPrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get presence snapshot: %w", err)
	}

	var s driverSnapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("unmarshal presence snapshot: %w", err)
	}
	return s.toDomain(), nil
}

// ListDriverPresence scans all live snapshots. Used to seed the admin map and
// a reconnecting admin's driver list.
func (c *Client) ListDriverPresence(ctx context.Context) ([]*presence.DriverPresence, error) {
	var out []*presence.DriverPresence
	iter := c.rdb.Scan(ctx, 0, driverKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		body, err := c.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("get presence snapshot: %w", err)
		}
		var s driverSnapshot
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("unmarshal presence snapshot: %w", err)
		}
		out = append(out, s.toDomain())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence snapshots: %w", err)
	}
	return out, nil
}

// SetSystemFlag flips one named runtime flag.
func (c *Client) SetSystemFlag(ctx context.Context, name string, enabled bool) error {
	if err := c.rdb.HSet(ctx, systemFlagsKey, name, enabled).Err(); err != nil {
		return fmt.Errorf("set system flag: %w", err)
	}
	return nil
}

// SystemFlags returns the whole flag hash. Missing hash means all defaults.
func (c *Client) SystemFlags(ctx context.Context) (map[string]bool, error) {
	raw, err := c.rdb.HGetAll(ctx, systemFlagsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get system flags: %w", err)
	}

	flags := make(map[string]bool, len(raw))
	for name, v := range raw {
		flags[name] = v == "1" || v == "true"
	}
	return flags, nil
}

// driverSnapshot is the wire form of a presence record in redis.
type driverSnapshot struct {
	DriverID      string             `json:"driver_id"`
	DeviceID      string             `json:"device_id"`
	State         string             `json:"state"`
	AvailablePref bool               `json:"available_pref"`
	Location      *presence.Location `json:"location,omitempty"`
	LastSeenAt    time.Time          `json:"last_seen_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func snapshotFrom(p *presence.DriverPresence) driverSnapshot {
	return driverSnapshot{
		DriverID:      p.DriverID,
		DeviceID:      p.DeviceID,
		State:         p.State.String(),
		AvailablePref: p.AvailablePref,
		Location:      p.Location,
		LastSeenAt:    p.LastSeenAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (s driverSnapshot) toDomain() *presence.DriverPresence {
	return &presence.DriverPresence{
		DriverID:      s.DriverID,
		DeviceID:      s.DeviceID,
		State:         presence.State(s.State),
		AvailablePref: s.AvailablePref,
		Location:      s.Location,
		LastSeenAt:    s.LastSeenAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
