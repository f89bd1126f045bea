// Package idempotency deduplicates retried mutating requests. A request
// carrying an idempotency key either replays the stored response of an
// earlier identical request, or executes under a short-lived distributed
// lock and has its response recorded for later replays.
//
// The guarantee is best-effort, not exactly-once: when the lock is held by a
// concurrent identical request, the loser re-checks the replay record once
// and then runs the handler anyway rather than waiting out the lock. Any
// store failure degrades the request to plain, unrecorded execution.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"scaffold/internal/kv"
	"scaffold/internal/lock"
)

// HeaderKey is the request header carrying the client-supplied idempotency
// key. Header lookup is case-insensitive per net/http canonicalization.
const HeaderKey = "X-Idempotency-Key"

// DefaultTTL is how long a recorded response stays replayable.
const DefaultTTL = 24 * time.Hour

// DefaultLockTTL bounds how long first execution can exclude duplicates. A
// handler outliving it loses the lock, and a duplicate may run in parallel.
const DefaultLockTTL = 30 * time.Second

// defaultStatusCodes are the response codes worth recording; anything else
// is treated as a failed attempt that may be retried under the same key.
var defaultStatusCodes = []int{
	http.StatusOK,
	http.StatusCreated,
	http.StatusAccepted,
}

// Options configure the middleware per route.
type Options struct {
	// TTL overrides how long recorded responses live (default 24h).
	TTL time.Duration

	// StatusCodes overrides the allow-list of recordable status codes
	// (default 200, 201, 202).
	StatusCodes []int

	// LockTTL overrides the first-execution lock lifetime (default 30s).
	LockTTL time.Duration
}

// storedResponse is the recorded (status, body) pair, serialized as JSON.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Middleware returns an echo middleware deduplicating the named operation.
// Requests without the idempotency header pass through untouched.
func Middleware(operation string, store kv.Store, locker *lock.Locker, opts Options) echo.MiddlewareFunc {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	codes := opts.StatusCodes
	if len(codes) == 0 {
		codes = defaultStatusCodes
	}
	allowed := make(map[int]bool, len(codes))
	for _, code := range codes {
		allowed[code] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(HeaderKey)
			if header == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			req := c.Request()

			body, err := io.ReadAll(req.Body)
			if err != nil {
				slog.Warn("idempotency body read failed, proceeding uncached",
					"operation", operation, "error", err)
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := sha256.Sum256(body)
			replayKey := kv.Key("idem", operation, header, req.Method, req.URL.Path,
				hex.EncodeToString(bodyHash[:]))
			lockKey := kv.Key("lock", "idem", operation, header)

			if stored, ok := lookup(c, store, replayKey, operation); ok {
				replays.WithLabelValues(operation).Inc()
				return c.JSONBlob(stored.Status, stored.Body)
			}

			token, acquired, err := locker.Acquire(ctx, lockKey, lockTTL)
			if err != nil {
				slog.Warn("idempotency lock unavailable, proceeding uncached",
					"operation", operation, "error", err)
				return next(c)
			}
			if !acquired {
				// The same key is in flight. Re-check once: the first request
				// may have finished between our lookup and the lock attempt.
				// If not, fall through and execute anyway.
				if stored, ok := lookup(c, store, replayKey, operation); ok {
					replays.WithLabelValues(operation).Inc()
					return c.JSONBlob(stored.Status, stored.Body)
				}
			}

			capture := newCaptureWriter(c.Response().Writer)
			c.Response().Writer = capture

			handlerErr := next(c)

			if handlerErr == nil && c.Response().Committed && allowed[c.Response().Status] {
				record(ctx, store, replayKey, storedResponse{
					Status: c.Response().Status,
					Body:   capture.buf.Bytes(),
				}, ttl, operation)
			}

			if acquired {
				if _, err := locker.Release(ctx, lockKey, token); err != nil {
					slog.Warn("idempotency lock release failed",
						"operation", operation, "error", err)
				}
			}
			return handlerErr
		}
	}
}

// lookup fetches a recorded response. Store errors degrade to a miss so the
// request proceeds to the handler.
func lookup(c echo.Context, store kv.Store, key, operation string) (storedResponse, bool) {
	data, err := store.Get(c.Request().Context(), key)
	if err != nil {
		slog.Warn("idempotency replay lookup failed",
			"operation", operation, "error", err)
		return storedResponse{}, false
	}
	if data == nil {
		return storedResponse{}, false
	}
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("idempotency record corrupt, ignoring",
			"operation", operation, "error", err)
		return storedResponse{}, false
	}
	return stored, true
}

func record(ctx context.Context, store kv.Store, key string, stored storedResponse, ttl time.Duration, operation string) {
	if !json.Valid(stored.Body) {
		slog.Warn("idempotency response body is not JSON, not recording",
			"operation", operation)
		return
	}
	data, err := json.Marshal(stored)
	if err != nil {
		slog.Warn("idempotency record marshal failed", "operation", operation, "error", err)
		return
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("idempotency record write failed", "operation", operation, "error", err)
	}
}

// captureWriter tees the response body while passing writes through, the
// same shape echo's BodyDump middleware uses.
type captureWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w}
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *captureWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
