package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coffee-machine-backend/config"
	"coffee-machine-backend/internal/db"
	"coffee-machine-backend/internal/model"
	"coffee-machine-backend/internal/store"
)

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []int64
}

func (d *fakeDispatcher) Dispatch(machineID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, machineID)
	return true
}

func (d *fakeDispatcher) dispatched() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.ids...)
}

type testServer struct {
	router *gin.Engine
	store  store.Store
	alerts *fakeDispatcher
}

func newTestServer(t *testing.T, webpushOptions *webpush.Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{Server: config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000}}
	cfg.ApplyDefaults()

	s := store.NewGormStore(gormDB)
	alerts := &fakeDispatcher{}
	return &testServer{
		router: NewRouter(s, webpushOptions, alerts, NewResponseCache(&cfg.Server), &cfg.Server, zap.NewNop()),
		store:  s,
		alerts: alerts,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) seed(t *testing.T, m model.Machine) model.Machine {
	t.Helper()
	require.NoError(t, ts.store.CreateMachine(context.Background(), &m))
	return m
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateAndGetMachine(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/machines", gin.H{
		"name": "Lobby", "water": 4, "cups": 4, "beans": 4, "powered": true,
		"types": []string{"Espresso", "flat white"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[model.Machine](t, w)
	assert.Equal(t, []string{"espresso", "flat_white"}, created.SupportedTypes)

	w = ts.do(t, http.MethodGet, "/api/machines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	machines := decode[[]model.Machine](t, w)
	require.Len(t, machines, 1)
	assert.Equal(t, "Lobby", machines[0].Name)

	w = ts.do(t, http.MethodGet, "/api/machines/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Error.Code)

	w = ts.do(t, http.MethodGet, "/api/machines/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMachine_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/machines", gin.H{"water": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/machines", gin.H{"name": "X", "types": []string{"tea"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_type", decode[ErrorResponse](t, w).Error.Code)

	w = ts.do(t, http.MethodPost, "/api/machines", gin.H{"name": "X", "cups": -3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, w).Error.Code)
}

func TestBrew_Success(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.seed(t, model.Machine{Name: "Lobby", Water: 5, Cups: 5, Beans: 5, Powered: true, SupportedTypes: []string{"latte"}})

	// Warm the cache so the follow-up GET proves the brew invalidated it.
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/machines/1", nil).Code)

	w := ts.do(t, http.MethodPost, "/api/machines/1/brew", gin.H{"type": "Latte", "count": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[BrewResponse](t, w)
	assert.Equal(t, 2, resp.Completed)
	assert.Equal(t, 3, resp.Machine.Water)
	assert.NotEmpty(t, resp.BrewID)

	w = ts.do(t, http.MethodGet, "/api/machines/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[model.Machine](t, w).Cups)
	assert.Empty(t, ts.alerts.dispatched())

	w = ts.do(t, http.MethodGet, "/api/machines/1/brews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[[]model.BrewLog](t, w)
	require.Len(t, logs, 1)
	assert.Equal(t, m.ID, logs[0].MachineID)
	assert.Equal(t, "ok", logs[0].Outcome)
}

func TestBrew_ZeroCount(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, model.Machine{Name: "Empty"})

	w := ts.do(t, http.MethodPost, "/api/machines/1/brew", gin.H{"type": "espresso", "count": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, decode[BrewResponse](t, w).Completed)
}

func TestBrew_FailFastReportsFirstUnmetPrecondition(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.seed(t, model.Machine{Name: "Lobby", Water: 5, Cups: 1, Beans: 5, Powered: true, SupportedTypes: []string{"espresso"}})

	w := ts.do(t, http.MethodPost, "/api/machines/1/brew", gin.H{"type": "espresso", "count": 3})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var resp struct {
		Error struct {
			Code    string      `json:"code"`
			Details brewFailure `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "out_of_cups", resp.Error.Code)
	assert.Equal(t, 2, resp.Error.Details.Unit)
	assert.Equal(t, 1, resp.Error.Details.Completed)

	stored, err := ts.store.GetMachine(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Cups)
	assert.Equal(t, 4, stored.Water)
	assert.Equal(t, []int64{m.ID}, ts.alerts.dispatched())
}

func TestBrew_PreconditionCodes(t *testing.T) {
	testCases := []struct {
		name     string
		machine  model.Machine
		coffee   string
		expected string
	}{
		{
			name:     "everything missing reports water",
			machine:  model.Machine{Name: "m"},
			coffee:   "espresso",
			expected: "out_of_water",
		},
		{
			name:     "no beans",
			machine:  model.Machine{Name: "m", Water: 1, Cups: 1, Powered: true, SupportedTypes: []string{"espresso"}},
			coffee:   "espresso",
			expected: "out_of_beans",
		},
		{
			name:     "known but unsupported type",
			machine:  model.Machine{Name: "m", Water: 1, Cups: 1, Beans: 1, Powered: true, SupportedTypes: []string{"espresso"}},
			coffee:   "mocha",
			expected: "unsupported_type",
		},
		{
			name:     "no power",
			machine:  model.Machine{Name: "m", Water: 1, Cups: 1, Beans: 1, SupportedTypes: []string{"espresso"}},
			coffee:   "espresso",
			expected: "no_power",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.seed(t, tc.machine)

			w := ts.do(t, http.MethodPost, "/api/machines/1/brew", gin.H{"type": tc.coffee, "count": 1})
			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, tc.expected, decode[ErrorResponse](t, w).Error.Code)
			assert.Empty(t, ts.alerts.dispatched(), "nothing was consumed, so nothing newly depleted")
		})
	}
}

func TestBrew_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, model.Machine{Name: "m", Water: 1, Cups: 1, Beans: 1, Powered: true})

	testCases := []struct {
		name     string
		path     string
		body     any
		status   int
		expected string
	}{
		{name: "unknown type", path: "/api/machines/1/brew", body: gin.H{"type": "tea", "count": 1}, status: http.StatusBadRequest, expected: "unknown_type"},
		{name: "missing count", path: "/api/machines/1/brew", body: gin.H{"type": "espresso"}, status: http.StatusBadRequest, expected: "invalid_request"},
		{name: "negative count", path: "/api/machines/1/brew", body: gin.H{"type": "espresso", "count": -1}, status: http.StatusBadRequest, expected: "invalid_count"},
		{name: "missing machine", path: "/api/machines/42/brew", body: gin.H{"type": "espresso", "count": 1}, status: http.StatusNotFound, expected: "not_found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.expected, decode[ErrorResponse](t, w).Error.Code)
		})
	}
}

func TestRefillAndPower(t *testing.T) {
	ts := newTestServer(t, nil)
	m := ts.seed(t, model.Machine{Name: "m", Powered: true})

	w := ts.do(t, http.MethodPost, "/api/machines/1/refill", gin.H{"water": 10, "cups": 20, "beans": 5})
	require.Equal(t, http.StatusOK, w.Code)
	refilled := decode[model.Machine](t, w)
	assert.Equal(t, 10, refilled.Water)
	assert.Equal(t, 20, refilled.Cups)

	w = ts.do(t, http.MethodPost, "/api/machines/1/refill", gin.H{"water": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/machines/1/power", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/machines/1/power", gin.H{"on": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[model.Machine](t, w).Powered)
	assert.Equal(t, []int64{m.ID}, ts.alerts.dispatched())
}

func TestSubscriptions(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seed(t, model.Machine{Name: "a"})
	ts.seed(t, model.Machine{Name: "b"})
	endpoint := "https://push.example.com/abc"

	w := ts.do(t, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret",
		"subscribed_machines": []int64{1, 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_machines":[1,2]}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret",
		"subscribed_machines": []int64{2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.JSONEq(t, `{"subscribed_machines":[2]}`, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVAPIDPublicKey(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ts = newTestServer(t, &webpush.Options{VAPIDPublicKey: "pub"})
	w = ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
