// Package redis publishes device events to a Redis pub/sub channel.
//
// Events are JSON encoded. Failed publishes are retried with exponential
// backoff.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/desklink/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "desklink:device_events"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: desklink:device_events).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
	// PerDevice publishes on "<Channel>:<device serial>".
	PerDevice bool
}

// Adapter publishes device events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// ChannelFor returns the channel an event is published on.
func (a *Adapter) ChannelFor(event *adapter.DeviceEvent) string {
	if a.config.PerDevice && event.Device != "" {
		return a.config.Channel + ":" + event.Device
	}
	return a.config.Channel
}

// Publish sends the event as a JSON PUBLISH, retrying with exponential
// backoff on failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.DeviceEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.ChannelFor(event)
	return adapter.Retry(ctx, "redis", a.config.Retries, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.client.Publish(publishCtx, channel, body).Err()
	}, nil)
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
