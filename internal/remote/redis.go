// Package remote syncs widget layouts between mirror instances through Redis.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/layout"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const keyPrefix = "smartmirror:layout:"

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// message is published on every save.
type message struct {
	Instance string        `json:"instance"`
	WidgetID string        `json:"widgetId"`
	Entry    layout.Entry  `json:"entry"`
	Source   layout.Source `json:"source"`
	SavedAt  time.Time     `json:"savedAt"`
}

// RedisBackend is a layout.Backend that stores entries in Redis and announces
// every save to the other instances.
type RedisBackend struct {
	client   *redis.Client
	channel  string
	instance string
	log      logrus.FieldLogger
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, opts Options, log logrus.FieldLogger) (*RedisBackend, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Address, err)
	}

	b := &RedisBackend{
		client:   client,
		channel:  opts.Channel,
		instance: uuid.NewString(),
		log:      log.WithField("component", "remote"),
	}
	b.log.WithField("address", opts.Address).Info("connected to redis")
	return b, nil
}

// Instance returns the id used to ignore this instance's own announcements.
func (b *RedisBackend) Instance() string {
	return b.instance
}

func (b *RedisBackend) Load(ctx context.Context, widgetID string) (layout.Entry, bool, error) {
	raw, err := b.client.Get(ctx, keyPrefix+widgetID).Bytes()
	if errors.Is(err, redis.Nil) {
		return layout.Entry{}, false, nil
	}
	if err != nil {
		return layout.Entry{}, false, fmt.Errorf("redis get %q: %w", widgetID, err)
	}

	var e layout.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return layout.Entry{}, false, fmt.Errorf("decode layout %q: %w", widgetID, err)
	}
	return e, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, widgetID string, e layout.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, keyPrefix+widgetID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", widgetID, err)
	}

	payload, err := json.Marshal(message{
		Instance: b.instance,
		WidgetID: widgetID,
		Entry:    e,
		Source:   layout.SourceFrom(ctx),
		SavedAt:  time.Now(),
	})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", widgetID, err)
	}
	return nil
}

// Listen applies layout changes announced by other instances to store until
// ctx is cancelled.
func (b *RedisBackend) Listen(ctx context.Context, store *layout.Store) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.WithField("channel", b.channel).Info("listening for layout changes")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if c, ok := b.decode(msg.Payload); ok {
				store.Apply(c)
			}
		}
	}
}

// decode turns an announcement into a change, dropping our own and
// undecodable messages.
func (b *RedisBackend) decode(payload string) (layout.Change, bool) {
	var m message
	if err := json.UnmarshalFromString(payload, &m); err != nil {
		b.log.WithError(err).Warn("dropping undecodable layout message")
		return layout.Change{}, false
	}
	if m.Instance == b.instance || m.WidgetID == "" {
		return layout.Change{}, false
	}
	b.log.WithFields(logrus.Fields{
		"widget":   m.WidgetID,
		"instance": m.Instance,
		"origin":   m.Source,
	}).Debug("remote layout change")
	return layout.Change{WidgetID: m.WidgetID, Entry: m.Entry, Source: layout.SourceRemote}, true
}

// Close closes the Redis client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
