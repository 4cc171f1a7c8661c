package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

type body struct {
	Status string
	Checks map[string]string
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) body {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	b := body{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			var err error
			b.Status, err = d.Str()
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				b.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return b
}

func checkerAt(h *Health, i int) *checker {
	return h.checkers[i]
}

func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())
	h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))

	w := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, w.Code, "checkers start healthy")
	assert.Equal(t, "ok", decodeBody(t, w).Status)

	ctx := context.Background()
	for range 2 {
		checkerAt(h, 1).run(ctx)
	}
	w = serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, w.Code, "two failures stay below threshold")

	checkerAt(h, 1).run(ctx)
	w = serve(h.LiveEndpoint, "/livez")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	b := decodeBody(t, w)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, b.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("redis", time.Second, failingCheck("i/o timeout"), WithThresholds(1, 2))
	h.AddLivenessCheck("redis", time.Second, failingCheck("ignored"))

	w := serve(h.ReadyEndpoint, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeBody(t, w).Checks, "_readiness")

	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint, "/readyz").Code)

	checkerAt(h, 1).run(context.Background())
	checkerAt(h, 2).run(context.Background())
	assert.False(t, h.IsReady())

	w = serve(h.ReadyEndpoint, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]string{"redis": "i/o timeout"}, decodeBody(t, w).Checks)

	h.SetReady(false)
	w = serve(h.ReadyEndpoint, "/readyz")
	assert.Len(t, decodeBody(t, w).Checks, 2)
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddReadinessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(2, 2))
	p := checkerAt(h, 0)
	ctx := context.Background()

	p.run(ctx)
	assert.True(t, p.healthy.Load())
	p.run(ctx)
	assert.False(t, p.healthy.Load())
	assert.Equal(t, "down", p.failure())

	failing = false
	p.run(ctx)
	assert.False(t, p.healthy.Load(), "one success is below the threshold")
	p.run(ctx)
	assert.True(t, p.healthy.Load())
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddLivenessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(1, 1))
	checkerAt(h, 0).run(context.Background())

	w := serve(h.LiveEndpoint, "/livez")
	assert.Equal(t, "context deadline exceeded", decodeBody(t, w).Checks["slow"])
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				serve(h.LiveEndpoint, "/livez")
				serve(h.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pingFunc(func(context.Context) error { return nil }))(context.Background()))

	err := PingCheck(pingFunc(func(context.Context) error { return errors.New("refused") }))(context.Background())
	assert.ErrorContains(t, err, "refused")
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	check := RedisCheck(client)
	require.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
