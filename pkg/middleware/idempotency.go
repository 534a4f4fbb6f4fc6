package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency key
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// Redis key prefix for idempotency records
	IdempotencyKeyPrefix = "idempotency:"
)

// IdempotencyStatus represents the status of an idempotency record
type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord stores the state of an idempotent request
type IdempotencyRecord struct {
	Key          string            `json:"key"`
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// RedisClient is the subset of redis operations the middleware needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	// Redis client for storing idempotency records
	Redis RedisClient
	// TTL for COMPLETED idempotency records (default: 24 hours)
	TTL time.Duration
	// TTL for PROCESSING idempotency records (default: 60 seconds)
	ProcessingTTL time.Duration
}

// DefaultIdempotencyConfig returns a config with sensible defaults
func DefaultIdempotencyConfig(client RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:         client,
		TTL:           24 * time.Hour,
		ProcessingTTL: 60 * time.Second,
	}
}

// bodyCapture buffers the response so it can be stored for replay
type bodyCapture struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency returns a middleware implementing at-most-once semantics for
// write endpoints. A request with a known completed key gets the stored
// response replayed; a key still marked processing is rejected with 409.
// Requests without the header pass through, join/leave are idempotent at the
// store level anyway.
func Idempotency(cfg *IdempotencyConfig) gin.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	processingTTL := cfg.ProcessingTTL
	if processingTTL <= 0 {
		processingTTL = 60 * time.Second
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		redisKey := IdempotencyKeyPrefix + key
		reqHash := hashRequest(c)

		// Claim the key; only the first request with this key proceeds.
		record := IdempotencyRecord{
			Key:         key,
			Status:      StatusProcessing,
			RequestHash: reqHash,
			CreatedAt:   time.Now().UTC(),
		}
		encoded, _ := json.Marshal(record)

		claimed, err := cfg.Redis.SetNX(ctx, redisKey, encoded, processingTTL).Result()
		if err != nil {
			// Redis being down must not block writes; the store keeps
			// join/leave idempotent on its own.
			c.Next()
			return
		}

		if !claimed {
			raw, err := cfg.Redis.Get(ctx, redisKey).Result()
			if err != nil {
				response.Error(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "request with this idempotency key is being processed", "")
				c.Abort()
				return
			}

			var existing IdempotencyRecord
			if err := json.Unmarshal([]byte(raw), &existing); err == nil && existing.Status == StatusCompleted {
				if existing.RequestHash != reqHash {
					response.Error(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key was used with a different request", "")
					c.Abort()
					return
				}
				c.Data(existing.ResponseCode, "application/json", []byte(existing.ResponseBody))
				c.Abort()
				return
			}

			response.Error(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "request with this idempotency key is being processed", "")
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = capture

		c.Next()

		// 5xx responses release the key so the client may retry.
		status := c.Writer.Status()
		if status >= 500 {
			_ = cfg.Redis.Del(ctx, redisKey).Err()
			return
		}

		now := time.Now().UTC()
		record.Status = StatusCompleted
		record.ResponseCode = status
		record.ResponseBody = capture.buf.String()
		record.CompletedAt = &now
		if encoded, err := json.Marshal(record); err == nil {
			_ = cfg.Redis.Set(ctx, redisKey, encoded, ttl).Err()
		}
	}
}

// hashRequest fingerprints method, path and body so a reused key with a
// different payload can be detected.
func hashRequest(c *gin.Context) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))

	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			h.Write(body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
