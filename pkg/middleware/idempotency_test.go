package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakeKV is an in-memory RedisClient good enough for middleware tests.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if v, ok := f.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeKV) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if _, ok := f.data[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.data[key] = toString(value)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func setupIdempotencyRouter(kv *fakeKV, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/join", Idempotency(&IdempotencyConfig{
		Redis:         kv,
		TTL:           time.Minute,
		ProcessingTTL: time.Second,
	}), handler)
	return router
}

func doJoin(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/join", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	kv := newFakeKV()
	calls := 0
	router := setupIdempotencyRouter(kv, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	first := doJoin(router, "key-1", `{"event":"e1"}`)
	second := doJoin(router, "key-1", `{"event":"e1"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	kv := newFakeKV()
	calls := 0
	router := setupIdempotencyRouter(kv, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	doJoin(router, "", `{}`)
	doJoin(router, "", `{}`)

	assert.Equal(t, 2, calls)
	assert.Empty(t, kv.data)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	kv := newFakeKV()
	router := setupIdempotencyRouter(kv, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := doJoin(router, "key-1", `{"event":"e1"}`)
	second := doJoin(router, "key-1", `{"event":"e2"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Contains(t, second.Body.String(), "IDEMPOTENCY_KEY_REUSED")
}

func TestIdempotency_InProgressConflicts(t *testing.T) {
	kv := newFakeKV()
	router := setupIdempotencyRouter(kv, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Simulate another request holding the key in processing state.
	kv.Set(context.Background(), IdempotencyKeyPrefix+"key-1",
		`{"key":"key-1","status":"processing","request_hash":"x","created_at":"2026-01-01T00:00:00Z"}`, time.Second)

	w := doJoin(router, "key-1", `{"event":"e1"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_IN_PROGRESS")
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	kv := newFakeKV()
	calls := 0
	router := setupIdempotencyRouter(kv, func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := doJoin(router, "key-1", `{"event":"e1"}`)
	second := doJoin(router, "key-1", `{"event":"e1"}`)

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, calls)
}
