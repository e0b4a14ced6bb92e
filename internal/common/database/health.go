package database

import (
	"context"
	"sort"
	"time"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checks maps a dependency name to its probe.
type Checks map[string]Pinger

// Run pings every dependency with its own timeout and reports each outcome.
// ok is false if any ping failed.
func (c Checks) Run(ctx context.Context, timeout time.Duration) (status map[string]string, ok bool) {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	status = make(map[string]string, len(c))
	ok = true
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c[name].Ping(pingCtx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			ok = false
			continue
		}
		status[name] = "ok"
	}
	return status, ok
}
