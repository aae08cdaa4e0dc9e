// Package natskv is the L2 implementation of the cache port on a NATS
// JetStream key-value bucket shared by all instances.
package natskv

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Entries carry their own expiry in an 8-byte big-endian unix-nano prefix,
// since bucket TTL is fixed at creation. Zero means no expiry.
const expiryLen = 8

// Cache stores values in a KV bucket.
type Cache struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Key maps a cache key onto the NATS KV key alphabet.
func Key(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '=', r == '/', r == '.':
			return r
		}
		return '_'
	}, key)
}

// Get returns a miss for absent, expired or malformed entries. Expired
// entries are removed in passing.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, Key(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, expires, ok := decode(entry.Value())
	if !ok {
		return nil, false, nil
	}
	if !expires.IsZero() && !c.now().Before(expires) {
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	_, err := c.kv.Put(ctx, Key(key), encode(value, expires))
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, Key(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func encode(value []byte, expires time.Time) []byte {
	buf := make([]byte, expiryLen+len(value))
	if !expires.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(expires.UnixNano()))
	}
	copy(buf[expiryLen:], value)
	return buf
}

func decode(raw []byte) ([]byte, time.Time, bool) {
	if len(raw) < expiryLen {
		return nil, time.Time{}, false
	}
	var expires time.Time
	if n := binary.BigEndian.Uint64(raw); n != 0 {
		expires = time.Unix(0, int64(n))
	}
	return raw[expiryLen:], expires, true
}
