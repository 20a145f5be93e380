// Package standard implements the hw.Backend contract over an
// attribute-object SDK whose programmed state is mirrored into a Redis
// object database. Objects are typed hashes under "ASIC_STATE:<TYPE>:<oid>";
// writing attributes to the store programs the hardware through the
// vendor's sync daemon.
package standard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/crosspoint-network/crosspoint/pkg/util"
)

const keyPrefix = "ASIC_STATE:"

// Object type names used by this backend.
const (
	TypePort          = "PORT"
	TypeBridgePort    = "BRIDGE_PORT"
	TypeQueue         = "QUEUE"
	TypeMirrorSession = "MIRROR_SESSION"
	TypeCounters      = "COUNTERS"
)

// ObjectStore is the attribute-object state interface. Get returns an empty
// map for a missing object; Set merges attributes into the object, creating
// it if absent.
type ObjectStore interface {
	Get(ctx context.Context, typ, key string) (map[string]string, error)
	Set(ctx context.Context, typ, key string, attrs map[string]string) error
	Delete(ctx context.Context, typ, key string) error
	DeleteField(ctx context.Context, typ, key, field string) error
	Keys(ctx context.Context, typ string) ([]string, error)
}

// RedisStore is the production ObjectStore, backed by the object database
// in Redis DB 1. Connections may be direct or through an SSH tunnel when
// the database port is not reachable from the control host.
type RedisStore struct {
	client *redis.Client
	tunnel *Tunnel
}

// RedisConfig selects how the object database is reached.
type RedisConfig struct {
	Addr string

	// SSH tunnel settings; used when SSHHost is non-empty.
	SSHHost string
	SSHUser string
	SSHPass string
}

// NewRedisStore connects to the object database, tunneling through SSH
// when configured. The connection is verified with a ping before use.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	s := &RedisStore{}

	addr := cfg.Addr
	if cfg.SSHHost != "" {
		tunnel, err := NewTunnel(cfg.SSHHost, cfg.SSHUser, cfg.SSHPass, cfg.Addr)
		if err != nil {
			return nil, err
		}
		s.tunnel = tunnel
		addr = tunnel.LocalAddr()
	}

	s.client = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1,
	})
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.Close()
		return nil, fmt.Errorf("object db ping: %w", err)
	}
	return s, nil
}

// Close closes the Redis connection and the SSH tunnel, if any.
func (s *RedisStore) Close() error {
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	if s.tunnel != nil {
		if terr := s.tunnel.Close(); err == nil {
			err = terr
		}
	}
	return err
}

func storeKey(typ, key string) string {
	return keyPrefix + typ + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, typ, key string) (map[string]string, error) {
	vals, err := s.client.HGetAll(ctx, storeKey(typ, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("object db read %s:%s: %w", typ, key, err)
	}
	return vals, nil
}

func (s *RedisStore) Set(ctx context.Context, typ, key string, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, 2*len(attrs))
	for k, v := range attrs {
		fields = append(fields, k, v)
	}
	if err := s.client.HSet(ctx, storeKey(typ, key), fields...).Err(); err != nil {
		return fmt.Errorf("object db write %s:%s: %w", typ, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, typ, key string) error {
	if err := s.client.Del(ctx, storeKey(typ, key)).Err(); err != nil {
		return fmt.Errorf("object db delete %s:%s: %w", typ, key, err)
	}
	return nil
}

func (s *RedisStore) DeleteField(ctx context.Context, typ, key, field string) error {
	if err := s.client.HDel(ctx, storeKey(typ, key), field).Err(); err != nil {
		return fmt.Errorf("object db field delete %s:%s.%s: %w", typ, key, field, err)
	}
	return nil
}

// Keys scans for all object keys of a type. SCAN is used instead of KEYS;
// the object database can hold hundreds of thousands of entries.
func (s *RedisStore) Keys(ctx context.Context, typ string) ([]string, error) {
	prefix := keyPrefix + typ + ":"
	var all []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("object db scan %s: %w", typ, err)
		}
		for _, k := range keys {
			all = append(all, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return all, nil
}

// MemStore is an in-memory ObjectStore for tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]map[string]string)}
}

func (s *MemStore) Get(ctx context.Context, typ, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.objects[storeKey(typ, key)] {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) Set(ctx context.Context, typ, key string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk := storeKey(typ, key)
	if s.objects[sk] == nil {
		s.objects[sk] = make(map[string]string)
	}
	for k, v := range attrs {
		s.objects[sk][k] = v
	}
	return nil
}

func (s *MemStore) Delete(ctx context.Context, typ, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storeKey(typ, key))
	return nil
}

func (s *MemStore) DeleteField(ctx context.Context, typ, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj := s.objects[storeKey(typ, key)]; obj != nil {
		delete(obj, field)
	}
	return nil
}

func (s *MemStore) Keys(ctx context.Context, typ string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := keyPrefix + typ + ":"
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	return keys, nil
}

var _ ObjectStore = (*RedisStore)(nil)
var _ ObjectStore = (*MemStore)(nil)

// logStoreError is shared by counter reads that tolerate partial failure.
func logStoreError(portName, what string, err error) {
	util.WithPort(portName).Errorf("Failed to read %s: %v", what, err)
}
