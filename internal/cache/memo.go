package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Memo caches pure computation results by a content hash of their inputs. Concurrent calls
// with identical inputs share one computation. A stored entry carries its canonical input and
// is only served when that input matches byte for byte.
type Memo struct {
	provider Provider
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

// NewMemo wraps provider. A nil provider disables storage but keeps call deduplication.
func NewMemo(provider Provider, ttl time.Duration, logger *slog.Logger) *Memo {
	if provider == nil {
		provider = NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memo{provider: provider, ttl: ttl, logger: logger}
}

type memoEntry struct {
	Input json.RawMessage `json:"input"`
	Value json.RawMessage `json:"value"`
}

// Key returns the cache key of op applied to input, along with the canonical input bytes.
func Key(op string, input any) (string, []byte, error) {
	canonical, err := json.Marshal(input)
	if err != nil {
		return "", nil, fmt.Errorf("canonical input: %w", err)
	}
	sum := xxhash.Sum64(canonical)
	return "rcm:" + op + ":" + strconv.FormatUint(sum, 16), canonical, nil
}

// Do returns the memoized result of compute for input, reporting whether it came from the
// cache. Errors from compute are never cached; cache failures degrade to computing directly.
func Do[T any](ctx context.Context, m *Memo, op string, input any, compute func() (T, error)) (T, bool, error) {
	if m == nil {
		v, err := compute()
		return v, false, err
	}

	key, canonical, err := Key(op, input)
	if err != nil {
		// inputs such as NaN have no canonical form; they are rejected downstream anyway
		v, err := compute()
		return v, false, err
	}

	if v, ok := lookup[T](ctx, m, key, canonical); ok {
		return v, true, nil
	}

	res, err, _ := m.group.Do(flightKey(key, canonical), func() (any, error) {
		v, err := compute()
		if err != nil {
			return v, err
		}
		m.store(ctx, key, canonical, v)
		return v, nil
	})
	v, _ := res.(T)
	return v, false, err
}

// flightKey includes the canonical input so calls whose hashes collide never share a result.
func flightKey(key string, canonical []byte) string {
	return key + "\x00" + string(canonical)
}

func lookup[T any](ctx context.Context, m *Memo, key string, canonical []byte) (T, bool) {
	var zero T
	data, err := m.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.logger.Warn("memo cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return zero, false
	}
	var e memoEntry
	if err := json.Unmarshal(data, &e); err != nil || !bytes.Equal(e.Input, canonical) {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return zero, false
	}
	return v, true
}

func (m *Memo) store(ctx context.Context, key string, canonical []byte, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		// results holding +Inf, e.g. an early-life hazard at t=0, are not stored
		m.logger.Debug("memo value not cacheable", slog.String("key", key), slog.Any("error", err))
		return
	}
	data, err := json.Marshal(memoEntry{Input: canonical, Value: payload})
	if err != nil {
		return
	}
	if err := m.provider.Set(ctx, key, data, m.ttl); err != nil {
		m.logger.Warn("memo cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
