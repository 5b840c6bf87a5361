// Package redisstore is the shared session scope for tabs running in
// separate processes. Values live in plain Redis string keys under a
// namespace; every write is announced on a Pub/Sub channel so other tabs
// observe it as a storage.ChangeEvent.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agency-admin/internal/utils"
	"github.com/jrsteele09/go-agency-admin/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultNamespace = "agency-admin"

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore Connect] ping %s: %w", addr, err)
	}
	return client, nil
}

var _ storage.Store = (*Store)(nil)

// Store is one tab's handle on the shared Redis keyspace.
type Store struct {
	client  *redis.Client
	prefix  string
	channel string
	origin  string
}

// changeMessage is published for every write.
type changeMessage struct {
	Origin   string  `json:"origin"`
	Key      string  `json:"key"`
	OldValue *string `json:"oldValue,omitempty"`
	NewValue *string `json:"newValue,omitempty"`
}

// New returns a handle with a fresh origin ID. An empty namespace uses
// "agency-admin".
func New(client *redis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Store{
		client:  client,
		prefix:  namespace + ":",
		channel: namespace + ":changes",
		origin:  uuid.New().String(),
	}
}

// Origin identifies this handle in published change messages.
func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Redis GET failed")
		return "", false, fmt.Errorf("[redisstore Get] %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	old, err := s.client.GetSet(ctx, s.prefix+key, value).Result()
	existed := true
	if errors.Is(err, redis.Nil) {
		existed = false
	} else if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Redis GETSET failed")
		return fmt.Errorf("[redisstore Set] %s: %w", key, err)
	}

	if existed && old == value {
		return nil
	}
	msg := changeMessage{Origin: s.origin, Key: key, NewValue: utils.Ptr(value)}
	if existed {
		msg.OldValue = utils.Ptr(old)
	}
	return s.publish(ctx, msg)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	old, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Redis GETDEL failed")
		return fmt.Errorf("[redisstore Remove] %s: %w", key, err)
	}
	return s.publish(ctx, changeMessage{Origin: s.origin, Key: key, OldValue: utils.Ptr(old)})
}

func (s *Store) publish(ctx context.Context, msg changeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("[redisstore publish] marshal: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		log.Error().Err(err).Str("key", msg.Key).Msg("Redis PUBLISH failed")
		return fmt.Errorf("[redisstore publish] %s: %w", msg.Key, err)
	}
	return nil
}

// Watch subscribes to the change channel. Messages published by this
// handle are filtered out.
func (s *Store) Watch(ctx context.Context) (<-chan storage.ChangeEvent, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("[redisstore Watch] subscribe %s: %w", s.channel, err)
	}

	out := make(chan storage.ChangeEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-messages:
				if !ok {
					return
				}
				ev, ok := s.decode(m.Payload)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) decode(payload string) (storage.ChangeEvent, bool) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed session change message")
		return storage.ChangeEvent{}, false
	}
	if msg.Origin == s.origin {
		return storage.ChangeEvent{}, false
	}
	return storage.ChangeEvent{Key: msg.Key, OldValue: msg.OldValue, NewValue: msg.NewValue}, true
}
