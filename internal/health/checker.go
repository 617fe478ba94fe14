package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	ID            string
}

type Component string

const (
	ComponentRedis    Component = "redis"
	ComponentDB       Component = "db"
	ComponentRabbit   Component = "rabbitmq"
	ComponentTokenAPI Component = "tokenization"
)

// Pinger is anything whose liveness can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
	Error     string    `json:"error,omitempty"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type Checker struct {
	config     *Config
	components map[Component]Pinger
	mu         sync.RWMutex
	checks     HealthChecks
	log        *slog.Logger
}

func NewChecker(config *Config, components map[Component]Pinger) *Checker {
	checks := HealthChecks{}
	for component := range components {
		// if this code gets executed, we assume that there was an initial
		// check
		checks[component] = CheckResult{Timestamp: time.Now(), Result: true}
	}

	return &Checker{
		config:     config,
		components: components,
		checks:     checks,
		log:        slog.With("pod", config.ID, "component", "health"),
	}
}

func (c *Checker) Run(ctx context.Context) error {
	c.log.Debug("Starting the health checker...")

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return nil
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll probes every component once.
func (c *Checker) CheckAll(ctx context.Context) {
	for component, pinger := range c.components {
		c.check(ctx, component, pinger)
	}
}

func (c *Checker) check(ctx context.Context, component Component, pinger Pinger) {
	checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	err := pinger.Ping(checkCtx)

	result := CheckResult{
		Timestamp: time.Now(),
		Result:    err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	c.mu.Lock()
	c.checks[component] = result
	c.mu.Unlock()
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	components := make([]string, 0, len(c.checks))
	for component := range c.checks {
		components = append(components, string(component))
	}
	sort.Strings(components)

	for _, name := range components {
		check := c.checks[Component(name)]
		checks[Component(name)] = check

		if !check.Result {
			healthy = false
			c.log.Error("Component health check failed", "component", name, "error", check.Error)
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}
