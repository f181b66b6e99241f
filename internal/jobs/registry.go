package jobs

import (
	"log/slog"
	"sync"
)

// Registry owns the job table. The table can only be reached through a Guard,
// and the signal handler takes the same guard before it collects any child
// status, so holding a guard keeps child-status handling out.
type Registry struct {
	mu      sync.Mutex
	changed *sync.Cond
	table   Table
}

func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{table: Table{log: logger}}
	r.changed = sync.NewCond(&r.mu)
	return r
}

// Acquire blocks until the table is free and returns exclusive access to it.
// Every Acquire must be paired with Release.
func (r *Registry) Acquire() *Guard {
	r.mu.Lock()
	return &Guard{Table: &r.table, r: r}
}

// Snapshot returns the live jobs ordered by jid.
func (r *Registry) Snapshot() []Job {
	g := r.Acquire()
	defer g.Release()
	return g.Snapshot()
}

// Guard is exclusive access to the job table.
type Guard struct {
	*Table
	r *Registry
}

// Wait atomically gives up the guard and suspends until another holder
// releases it, then takes it back. The table may have changed on return.
func (g *Guard) Wait() {
	g.r.changed.Wait()
}

// Release gives up the guard and wakes every Wait.
func (g *Guard) Release() {
	g.r.changed.Broadcast()
	g.r.mu.Unlock()
}
