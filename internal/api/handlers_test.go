package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/models"
	"github.com/passbi/subway_path/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process PathCache
type memoryCache struct {
	mu     sync.Mutex
	paths  map[string]*models.Path
	locks  map[string]bool
	gets   int
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{paths: map[string]*models.Path{}, locks: map[string]bool{}}
}

func (m *memoryCache) GetPath(ctx context.Context, key string) (*models.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.paths[key], nil
}

func (m *memoryCache) SetPath(ctx context.Context, key string, path *models.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[key] = path
	return nil
}

func (m *memoryCache) AcquireLock(ctx context.Context, pathKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[pathKey] {
		return false, nil
	}
	m.locks[pathKey] = true
	return true, nil
}

func (m *memoryCache) ReleaseLock(ctx context.Context, pathKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, pathKey)
	return nil
}

func (m *memoryCache) WaitForPath(ctx context.Context, pathKey string, maxWait time.Duration) (*models.Path, error) {
	return m.GetPath(ctx, pathKey)
}

func testNetwork(t *testing.T) *graph.Network {
	t.Helper()
	network, err := graph.NewNetwork(graph.NetworkData{
		Stations: []string{"Gyodae", "Gangnam", "Yangjae", "Nambu Bus Terminal", "Island"},
		Lines: []models.Line{
			{Name: "Line 2", Stations: []string{"Gyodae", "Gangnam"}},
			{Name: "Line 3", Stations: []string{"Gyodae", "Nambu Bus Terminal", "Yangjae"}},
		},
		Sections: []models.Section{
			{From: "Gyodae", To: "Gangnam", Distance: 2, Time: 3},
			{From: "Gangnam", To: "Yangjae", Distance: 2, Time: 8},
			{From: "Gyodae", To: "Nambu Bus Terminal", Distance: 3, Time: 2},
			{From: "Nambu Bus Terminal", To: "Yangjae", Distance: 6, Time: 5},
		},
	}, routing.WeightFuncs())
	require.NoError(t, err)
	return network
}

func setupApp(t *testing.T, pathCache PathCache, checks map[string]HealthCheck) *fiber.App {
	t.Helper()

	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	h := NewHandler(routing.NewRouter(testNetwork(t)), pathCache, pool, checks)
	app := fiber.New()
	h.Register(app)
	return app
}

func get(t *testing.T, app *fiber.App, path string, params url.Values) (int, map[string]interface{}) {
	t.Helper()

	target := path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestPathSearch(t *testing.T) {
	app := setupApp(t, nil, nil)

	t.Run("Shortest distance", func(t *testing.T) {
		status, body := get(t, app, "/v1/path", url.Values{
			"from": {"Gyodae"}, "to": {"Yangjae"}, "type": {"shortest-distance"},
		})

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []interface{}{"Gyodae", "Gangnam", "Yangjae"}, body["path"])
		assert.Equal(t, "Gyodae➜Gangnam➜Yangjae", body["path_text"])
		assert.Equal(t, "shortest-distance", body["search_type"])
		assert.Equal(t, 4.0, body["total_distance_km"])
		assert.Equal(t, 11.0, body["total_time_min"])
		assert.Equal(t, 4.0, body["weight"])
	})

	t.Run("Minimum time", func(t *testing.T) {
		status, body := get(t, app, "/v1/path", url.Values{
			"from": {"Gyodae"}, "to": {"Yangjae"}, "type": {"minimum-time"},
		})

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Gyodae➜Nambu Bus Terminal➜Yangjae", body["path_text"])
		assert.Equal(t, 9.0, body["total_distance_km"])
		assert.Equal(t, 7.0, body["total_time_min"])
	})

	t.Run("No path", func(t *testing.T) {
		status, body := get(t, app, "/v1/path", url.Values{
			"from": {"Gyodae"}, "to": {"Island"}, "type": {"minimum-time"},
		})

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "no path between stations", body["error"])
	})
}

func TestPathSearchValidation(t *testing.T) {
	app := setupApp(t, nil, nil)

	tests := []struct {
		name     string
		params   url.Values
		contains string
	}{
		{"Missing type", url.Values{"from": {"Gyodae"}, "to": {"Yangjae"}}, "invalid search type"},
		{"Unknown type", url.Values{"from": {"Gyodae"}, "to": {"Yangjae"}, "type": {"fastest"}}, "invalid search type"},
		{"Short name", url.Values{"from": {"G"}, "to": {"Yangjae"}, "type": {"minimum-time"}}, "too short"},
		{"Unknown station", url.Values{"from": {"Gyodae"}, "to": {"Jamsil"}, "type": {"minimum-time"}}, "unknown station"},
		{"Same station", url.Values{"from": {"Gyodae"}, "to": {"Gyodae"}, "type": {"minimum-time"}}, "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, app, "/v1/path", tt.params)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body["error"], tt.contains)
		})
	}
}

func TestPathSearchCache(t *testing.T) {
	t.Run("Second query is served from cache", func(t *testing.T) {
		c := newMemoryCache()
		app := setupApp(t, c, nil)
		params := url.Values{"from": {"Gyodae"}, "to": {"Yangjae"}, "type": {"minimum-time"}}

		status, first := get(t, app, "/v1/path", params)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, c.paths, 1)
		assert.Empty(t, c.locks)

		status, second := get(t, app, "/v1/path", params)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, first, second)
	})

	t.Run("Cache errors degrade to computing", func(t *testing.T) {
		c := newMemoryCache()
		c.getErr = errors.New("redis down")
		app := setupApp(t, c, nil)

		status, body := get(t, app, "/v1/path", url.Values{
			"from": {"Gyodae"}, "to": {"Yangjae"}, "type": {"shortest-distance"},
		})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 4.0, body["weight"])
	})
}

func TestPathCompare(t *testing.T) {
	app := setupApp(t, nil, nil)

	t.Run("Both metrics", func(t *testing.T) {
		status, body := get(t, app, "/v1/path/compare", url.Values{"from": {"Gyodae"}, "to": {"Yangjae"}})
		require.Equal(t, http.StatusOK, status)

		routes, ok := body["routes"].(map[string]interface{})
		require.True(t, ok)
		require.Len(t, routes, 2)

		distance := routes["shortest-distance"].(map[string]interface{})
		assert.Equal(t, 4.0, distance["total_distance_km"])
		timed := routes["minimum-time"].(map[string]interface{})
		assert.Equal(t, 7.0, timed["total_time_min"])
	})

	t.Run("No path", func(t *testing.T) {
		status, _ := get(t, app, "/v1/path/compare", url.Values{"from": {"Gyodae"}, "to": {"Island"}})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Validation", func(t *testing.T) {
		status, _ := get(t, app, "/v1/path/compare", url.Values{"from": {"Gyodae"}, "to": {"Gyodae"}})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestStationsAndLines(t *testing.T) {
	app := setupApp(t, nil, nil)

	t.Run("All stations", func(t *testing.T) {
		status, body := get(t, app, "/v1/stations", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 5.0, body["total"])
	})

	t.Run("Prefix filter", func(t *testing.T) {
		status, body := get(t, app, "/v1/stations", url.Values{"q": {"gy"}})
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []interface{}{"Gyodae"}, body["stations"])
	})

	t.Run("Lines", func(t *testing.T) {
		status, body := get(t, app, "/v1/lines", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 2.0, body["total"])
	})
}

func TestHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		app := setupApp(t, nil, map[string]HealthCheck{
			"database": func(ctx context.Context) error { return nil },
		})

		status, body := get(t, app, "/health", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, map[string]interface{}{"database": "ok"}, body["checks"])
	})

	t.Run("Unhealthy", func(t *testing.T) {
		app := setupApp(t, nil, map[string]HealthCheck{
			"database": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		})

		status, body := get(t, app, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body["status"])
	})
}

func TestHealthDetails(t *testing.T) {
	pool, err := ants.NewPool(1)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	completed := time.Date(2026, 1, 2, 3, 4, 10, 0, time.UTC)
	h := NewHandler(routing.NewRouter(testNetwork(t)), nil, pool, nil).
		WithDetail("last_import", func(ctx context.Context) (interface{}, error) {
			return &models.ImportLog{
				ID:            7,
				StartedAt:     completed.Add(-6 * time.Second),
				CompletedAt:   &completed,
				Status:        "completed",
				StationsCount: 5,
				LinesCount:    2,
				SectionsCount: 4,
			}, nil
		}).
		WithDetail("cache", func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("pool closed")
		})
	app := fiber.New()
	h.Register(app)

	status, body := get(t, app, "/health", nil)

	// Details never affect the status
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok, "details missing: %v", body)

	lastImport, ok := details["last_import"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), lastImport["id"])
	assert.Equal(t, "completed", lastImport["status"])
	assert.Equal(t, float64(5), lastImport["stations_count"])
	assert.Equal(t, float64(2), lastImport["lines_count"])
	assert.Equal(t, float64(4), lastImport["sections_count"])
	assert.Equal(t, "2026-01-02T03:04:10Z", lastImport["completed_at"])
	assert.NotContains(t, lastImport, "error")

	assert.Equal(t, map[string]interface{}{"error": "pool closed"}, details["cache"])
}
