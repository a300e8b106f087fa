package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a dependency that answers but is impaired. Wrap it to
// report degraded instead of unhealthy.
var ErrDegraded = errors.New("degraded")

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

type dependency struct {
	name     string
	critical bool
	check    CheckFunc
}

// HealthChecker runs the registered dependency checks behind the readiness endpoint.
// A failing critical dependency makes the service unhealthy; any other
// failure only degrades it.
type HealthChecker struct {
	deps    []dependency
	metrics *Metrics
	version string
	timeout time.Duration
}

// NewHealthChecker registers the account database as critical and Redis as
// non-critical, since Redis only backs login throttling. Either may be nil.
func NewHealthChecker(db *sql.DB, rdb *redis.Client) *HealthChecker {
	h := &HealthChecker{version: "dev", timeout: 5 * time.Second}
	if db != nil {
		h.WithDependency("database", true, func(ctx context.Context) error {
			return h.checkDatabase(ctx, db)
		})
	}
	if rdb != nil {
		h.WithDependency("redis", false, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return h
}

// WithDependency adds a named check. Registering a name again replaces it.
func (h *HealthChecker) WithDependency(name string, critical bool, check CheckFunc) *HealthChecker {
	dep := dependency{name: name, critical: critical, check: check}
	for i := range h.deps {
		if h.deps[i].name == name {
			h.deps[i] = dep
			return h
		}
	}
	h.deps = append(h.deps, dep)
	return h
}

// WithMetrics makes the database check refresh the pool gauges
func (h *HealthChecker) WithMetrics(m *Metrics) *HealthChecker {
	h.metrics = m
	return h
}

// WithVersion sets the version reported by Check
func (h *HealthChecker) WithVersion(version string) *HealthChecker {
	if version != "" {
		h.version = version
	}
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Critical  bool          `json:"critical"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Liveness answers 200 while the process can serve HTTP at all
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness answers 503 when a critical dependency is down, 200 otherwise
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check runs every dependency check concurrently and folds the results
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, dep := range h.deps {
		wg.Add(1)
		go func(dep dependency) {
			defer wg.Done()
			result := runCheck(ctx, dep)

			mu.Lock()
			defer mu.Unlock()
			status.Dependencies[dep.name] = result
			status.Status = worse(status.Status, overall(result))
		}(dep)
	}
	wg.Wait()

	return status
}

func runCheck(ctx context.Context, dep dependency) DependencyStatus {
	start := time.Now()
	err := dep.check(ctx)

	result := DependencyStatus{
		Status:    StatusHealthy,
		Critical:  dep.critical,
		Latency:   time.Since(start),
		Timestamp: start,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		if errors.Is(err, ErrDegraded) {
			result.Status = StatusDegraded
		}
		result.Message = err.Error()
	}
	return result
}

// overall is the effect one dependency has on the service status
func overall(dep DependencyStatus) string {
	if dep.Status == StatusUnhealthy && !dep.Critical {
		return StatusDegraded
	}
	return dep.Status
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// checkDatabase pings db and runs SELECT 1. A full pool is degraded.
func (h *HealthChecker) checkDatabase(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	stats := db.Stats()
	h.metrics.RecordDBStats(stats)
	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
		return fmt.Errorf("connection pool exhausted: %w", ErrDegraded)
	}
	return nil
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
