package api

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/passbi/subway_path/internal/cache"
	"github.com/passbi/subway_path/internal/models"
	"github.com/passbi/subway_path/internal/routing"
)

// PathSeparator joins station names in the human-readable path
const PathSeparator = "➜"

// PathCache is the subset of the Redis cache the handlers use
type PathCache interface {
	GetPath(ctx context.Context, key string) (*models.Path, error)
	SetPath(ctx context.Context, key string, path *models.Path) error
	AcquireLock(ctx context.Context, pathKey string) (bool, error)
	ReleaseLock(ctx context.Context, pathKey string) error
	WaitForPath(ctx context.Context, pathKey string, maxWait time.Duration) (*models.Path, error)
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthDetail reports informational state for /health. A failing detail
// does not mark the service unhealthy.
type HealthDetail func(ctx context.Context) (interface{}, error)

// Handler serves the HTTP API over a single loaded network
type Handler struct {
	router  *routing.Router
	cache   PathCache
	pool    *ants.Pool
	checks  map[string]HealthCheck
	details map[string]HealthDetail
}

// NewHandler creates a handler. pathCache may be nil to disable caching;
// checks may be nil when the service runs without external dependencies.
func NewHandler(router *routing.Router, pathCache PathCache, pool *ants.Pool, checks map[string]HealthCheck) *Handler {
	return &Handler{
		router: router,
		cache:  pathCache,
		pool:   pool,
		checks: checks,
	}
}

// WithDetail adds a named entry to the /health "details" object
func (h *Handler) WithDetail(name string, fn HealthDetail) *Handler {
	if h.details == nil {
		h.details = make(map[string]HealthDetail)
	}
	h.details[name] = fn
	return h
}

// Register mounts every route on app
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Get("/path", h.PathSearch)
	v1.Get("/path/compare", h.PathCompare)
	v1.Get("/stations", h.Stations)
	v1.Get("/lines", h.Lines)
}

// PathResult is the API representation of one computed path
type PathResult struct {
	Path            []string          `json:"path"`
	PathText        string            `json:"path_text"`
	SearchType      models.MetricName `json:"search_type"`
	TotalDistanceKm float64           `json:"total_distance_km"`
	TotalTimeMin    float64           `json:"total_time_min"`
	Weight          float64           `json:"weight"`
}

// PathCompareResponse holds one result per metric
type PathCompareResponse struct {
	Routes map[models.MetricName]*PathResult `json:"routes"`
}

func newPathResult(p *models.Path) *PathResult {
	return &PathResult{
		Path:            p.Stations,
		PathText:        strings.Join(p.Stations, PathSeparator),
		SearchType:      p.Metric,
		TotalDistanceKm: p.Totals.Distance,
		TotalTimeMin:    p.Totals.Time,
		Weight:          p.Weight,
	}
}

// PathSearch handles GET /v1/path?from=&to=&type=
func (h *Handler) PathSearch(c *fiber.Ctx) error {
	strategy, err := routing.GetStrategy(c.Query("type"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	from, to, err := h.router.ValidateQuery(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	path, err := h.computePath(c.UserContext(), from, to, strategy)
	if err != nil {
		log.Printf("Path computation failed for %s -> %s (%s): %v", from, to, strategy.Name(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if path == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no path between stations",
		})
	}

	return c.JSON(newPathResult(path))
}

// PathCompare handles GET /v1/path/compare?from=&to=, computing every metric
// concurrently on the worker pool
func (h *Handler) PathCompare(c *fiber.Ctx) error {
	from, to, err := h.router.ValidateQuery(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx := c.UserContext()
	strategies := routing.GetAllStrategies()

	type pathResult struct {
		metric models.MetricName
		path   *models.Path
		err    error
	}

	resultChan := make(chan pathResult, len(strategies))
	var wg sync.WaitGroup

	for _, strategy := range strategies {
		strat := strategy
		wg.Add(1)
		err := h.pool.Submit(func() {
			defer wg.Done()
			path, err := h.computePath(ctx, from, to, strat)
			resultChan <- pathResult{metric: strat.Name(), path: path, err: err}
		})
		if err != nil {
			wg.Done()
			resultChan <- pathResult{metric: strat.Name(), err: err}
		}
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	routes := make(map[models.MetricName]*PathResult)
	var failed bool
	for result := range resultChan {
		if result.err != nil {
			log.Printf("Path computation failed for metric %s: %v", result.metric, result.err)
			failed = true
			continue
		}

		if result.path != nil {
			routes[result.metric] = newPathResult(result.path)
		}
	}

	if len(routes) == 0 {
		if failed {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no path between stations",
		})
	}

	return c.JSON(PathCompareResponse{Routes: routes})
}

// computePath answers one query, going through the cache when one is configured.
// Cache failures are logged and the path is computed anyway.
func (h *Handler) computePath(ctx context.Context, from, to string, strategy routing.Strategy) (*models.Path, error) {
	if h.cache == nil {
		return h.router.FindPath(from, to, strategy)
	}

	cacheKey := cache.PathKey(from, to, strategy.Name())

	cachedPath, err := h.cache.GetPath(ctx, cacheKey)
	if err != nil {
		log.Printf("Failed to read cached path: %v", err)
	} else if cachedPath != nil {
		return cachedPath, nil
	}

	acquired, err := h.cache.AcquireLock(ctx, cacheKey)
	if err != nil {
		log.Printf("Failed to acquire lock: %v", err)
	} else if !acquired {
		// Another request is computing this path
		cachedPath, err := h.cache.WaitForPath(ctx, cacheKey, 3*time.Second)
		if err == nil && cachedPath != nil {
			return cachedPath, nil
		}
	}

	defer func() {
		if acquired {
			if err := h.cache.ReleaseLock(ctx, cacheKey); err != nil {
				log.Printf("Failed to release lock: %v", err)
			}
		}
	}()

	path, err := h.router.FindPath(from, to, strategy)
	if err != nil {
		return nil, err
	}

	if path != nil {
		if err := h.cache.SetPath(ctx, cacheKey, path); err != nil {
			log.Printf("Failed to cache path: %v", err)
		}
	}

	return path, nil
}

// StationsResponse lists every known station
type StationsResponse struct {
	Stations []string `json:"stations"`
	Total    int      `json:"total"`
}

// Stations handles GET /v1/stations
func (h *Handler) Stations(c *fiber.Ctx) error {
	stations := h.router.Network().Stations()

	if prefix := strings.TrimSpace(c.Query("q")); prefix != "" {
		filtered := []string{}
		for _, s := range stations {
			if strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix)) {
				filtered = append(filtered, s)
			}
		}
		stations = filtered
	}

	return c.JSON(StationsResponse{
		Stations: stations,
		Total:    len(stations),
	})
}

// LinesResponse lists every line with its stations
type LinesResponse struct {
	Lines []models.Line `json:"lines"`
	Total int           `json:"total"`
}

// Lines handles GET /v1/lines
func (h *Handler) Lines(c *fiber.Ctx) error {
	lines := h.router.Network().Lines()
	if lines == nil {
		lines = []models.Line{}
	}

	return c.JSON(LinesResponse{
		Lines: lines,
		Total: len(lines),
	})
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	httpStatus := fiber.StatusOK
	checks := fiber.Map{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			httpStatus = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	details := fiber.Map{}
	for name, detail := range h.details {
		value, err := detail(ctx)
		if err != nil {
			log.Printf("Health detail %s failed: %v", name, err)
			details[name] = fiber.Map{"error": err.Error()}
			continue
		}
		details[name] = value
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":   status,
		"checks":   checks,
		"details":  details,
		"stations": len(h.router.Network().Stations()),
		"sections": len(h.router.Network().Sections()),
	})
}
