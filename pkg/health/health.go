// Package health answers the query service's liveness and readiness endpoints.
// Readiness pings every registered dependency (the Redis namespaces, and the
// ledger database when enabled) in parallel.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

const readyTimeout = 5 * time.Second

// Check pings one dependency. A nil error means it can serve.
type Check func(ctx context.Context) error

// Result is the outcome of one Check.
type Result struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// Report is the readiness body. Ready is false if any dependency failed.
type Report struct {
	Ready     bool      `json:"ready"`
	Results   []Result  `json:"dependencies"`
	CheckedAt time.Time `json:"checked_at"`
}

type Checker struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Check
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
		sort.Strings(c.names)
	}
	c.checks[name] = check
}

// Run pings every dependency and waits for all of them. Results are ordered
// by name.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := append([]string(nil), c.names...)
	checks := make([]Check, len(names))
	for i, n := range names {
		checks[i] = c.checks[n]
	}
	c.mu.RUnlock()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			res := Result{Name: names[i], OK: err == nil, Latency: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				res.Error = err.Error()
				c.logger.Warn("dependency not ready", "dependency", names[i], "error", err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	report := Report{Ready: true, Results: results, CheckedAt: time.Now().UTC()}
	for _, res := range results {
		if !res.OK {
			report.Ready = false
		}
	}
	return report
}

// LiveHandler always answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.write(w, http.StatusOK, map[string]bool{"alive": true})
	}
}

// ReadyHandler answers 200 when every dependency responds and 503 otherwise.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Error("encoding health response", "error", err)
	}
}
