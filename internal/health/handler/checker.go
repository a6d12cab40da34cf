// Package handler reports liveness and readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"time"
)

// Pinger checks the database connection.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the authorization policy is loaded and evaluable.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Checker probes the dependencies the API needs to serve traffic. Nil dependencies are skipped.
type Checker struct {
	db      Pinger
	policy  PolicyChecker
	version string
}

// NewChecker returns a Checker.
func NewChecker(db Pinger, policy PolicyChecker, version string) *Checker {
	return &Checker{db: db, policy: policy, version: version}
}

// Ready runs every probe and returns the per-dependency result ("ok" or the error text) and
// whether all passed.
func (c *Checker) Ready(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{}
	ok := true
	probe := func(name string, fn func(context.Context) error) {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := fn(pctx); err != nil {
			checks[name] = err.Error()
			ok = false
			return
		}
		checks[name] = "ok"
	}
	if c.db != nil {
		probe("database", c.db.PingContext)
	}
	if c.policy != nil {
		probe("policy", c.policy.HealthCheck)
	}
	return checks, ok
}
