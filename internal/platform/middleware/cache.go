package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// CacheStore interface
// ---------------------------------------------------------------------------

// CacheStore defines the interface for a response cache backend.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the integer stored at key (0 when absent)
	// and returns the new value. Counters never expire.
	Incr(ctx context.Context, key string) (int64, error)
}

// ---------------------------------------------------------------------------
// InMemoryCacheStore
// ---------------------------------------------------------------------------

type cacheEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCacheStore is a thread-safe in-memory CacheStore with lazy expiration.
type InMemoryCacheStore struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
}

// NewInMemoryCacheStore creates a new InMemoryCacheStore.
func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{
		entries: make(map[string]*cacheEntry),
	}
}

// Get retrieves a value from the cache, deleting it on the way if it has
// expired.
func (s *InMemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}

// Set stores a value in the cache with the given TTL.
func (s *InMemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &cacheEntry{data: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Delete removes a single entry from the cache.
func (s *InMemoryCacheStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Incr increments a decimal counter stored as bytes, matching Redis INCR.
func (s *InMemoryCacheStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if entry, ok := s.entries[key]; ok && !entry.expired(time.Now()) {
		v, err := strconv.ParseInt(string(entry.data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer", key)
		}
		n = v
	}
	n++
	s.entries[key] = &cacheEntry{data: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

// Len returns the number of stored entries, expired or not.
func (s *InMemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup runs a background goroutine that periodically removes expired
// entries. It stops when the context is cancelled.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				now := time.Now()
				for k, v := range s.entries {
					if v.expired(now) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// ---------------------------------------------------------------------------
// Buffered response writer
// ---------------------------------------------------------------------------

// bufferedResponseWriter captures the response so it can be stored before
// being flushed to the real writer.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        *bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		writer:     w,
		buf:        &bytes.Buffer{},
		statusCode: http.StatusOK,
	}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferedResponseWriter) Flush() {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// ResponseCache
// ---------------------------------------------------------------------------

// ResponseCache caches successful GET responses of aggregate endpoints.
// Keys embed a generation number; Invalidate bumps it so every entry written
// before a snapshot change becomes unreachable and ages out by TTL.
type ResponseCache struct {
	store  CacheStore
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewResponseCache returns a cache using store with the given entry TTL.
func NewResponseCache(store CacheStore, ttl time.Duration, logger zerolog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		prefix: "ocupacao:http",
		logger: logger.With().Str("component", "response_cache").Logger(),
	}
}

func (rc *ResponseCache) generationKey() string {
	return rc.prefix + ":gen"
}

func (rc *ResponseCache) generation(ctx context.Context) int64 {
	raw, ok, err := rc.store.Get(ctx, rc.generationKey())
	if err != nil {
		rc.logger.Warn().Err(err).Msg("read cache generation")
		return 0
	}
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(string(raw), 10, 64)
	return n
}

// Invalidate makes every cached response stale.
func (rc *ResponseCache) Invalidate(ctx context.Context) error {
	gen, err := rc.store.Incr(ctx, rc.generationKey())
	if err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	rc.logger.Debug().Int64("generation", gen).Msg("response cache invalidated")
	return nil
}

// Key returns the cache key for the request in c at the current generation.
func (rc *ResponseCache) Key(c echo.Context) string {
	req := c.Request()
	tail := req.Method + ":" + req.URL.Path + "?" + req.URL.Query().Encode()
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:g%d:%x", rc.prefix, rc.generation(req.Context()), sum[:])
}

// Middleware serves cached GET responses and stores 200 responses on miss.
// Store failures degrade to an uncached request.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			ctx := req.Context()
			key := rc.Key(c)

			data, ok, err := rc.store.Get(ctx, key)
			if err != nil {
				rc.logger.Warn().Err(err).Msg("cache get")
			}
			if ok {
				if status, header, body, valid := decodePayload(data); valid {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, header.Get(echo.HeaderContentType), body)
				}
			}

			res := c.Response()
			origWriter := res.Writer
			buf := newBufferedResponseWriter(origWriter)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if buf.statusCode == http.StatusOK {
				header := http.Header{}
				header.Set(echo.HeaderContentType, res.Header().Get(echo.HeaderContentType))
				payload, encErr := encodePayload(buf.statusCode, header, buf.buf.Bytes())
				if encErr == nil {
					if err := rc.store.Set(ctx, key, payload, rc.ttl); err != nil {
						rc.logger.Warn().Err(err).Msg("cache set")
					}
				}
			}

			res.Header().Set("X-Cache", "MISS")
			return buf.flushTo()
		}
	}
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
