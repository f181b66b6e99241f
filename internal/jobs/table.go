package jobs

import (
	"fmt"
	"log/slog"
	"slices"
)

// Table is the fixed-size job list. It does no locking on its own; callers
// reach it through a Guard.
type Table struct {
	slots [MaxJobs]Job
	log   *slog.Logger
}

func NewTable(logger *slog.Logger) *Table {
	return &Table{log: logger}
}

func (t *Table) logger() *slog.Logger {
	if t.log == nil {
		return slog.Default()
	}
	return t.log
}

// freeJID returns the smallest unused job id, or 0 when every id is taken.
func (t *Table) freeJID() int {
	var taken [MaxJobs + 1]bool
	for i := range t.slots {
		if t.slots[i].JID != 0 {
			taken[t.slots[i].JID] = true
		}
	}
	for jid := 1; jid <= MaxJobs; jid++ {
		if !taken[jid] {
			return jid
		}
	}
	return 0
}

func (t *Table) find(pid int) int {
	if pid < 1 {
		return -1
	}
	for i := range t.slots {
		if t.slots[i].PID == pid {
			return i
		}
	}
	return -1
}

// Insert adds a job and returns it with its assigned jid.
func (t *Table) Insert(pid, pgid int, state State, cmdline string) (Job, error) {
	if pid < 1 {
		return Job{}, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if t.find(pid) >= 0 {
		return Job{}, fmt.Errorf("%w: %d", ErrDuplicatePID, pid)
	}
	if state == Foreground {
		if fg, ok := t.Foreground(); ok {
			return Job{}, fmt.Errorf("%w: [%d] (%d)", ErrForegroundBusy, fg.JID, fg.PID)
		}
	}
	jid := t.freeJID()
	if jid == 0 {
		return Job{}, ErrFull
	}
	if pgid < 1 {
		pgid = pid
	}
	for i := range t.slots {
		if t.slots[i].PID != 0 {
			continue
		}
		t.slots[i] = Job{PID: pid, PGID: pgid, JID: jid, State: state, Cmdline: cmdline}
		t.logger().Debug("added job", "jid", jid, "pid", pid, "pgid", pgid, "state", state.String(), "cmdline", cmdline)
		return t.slots[i], nil
	}
	return Job{}, ErrFull
}

// Remove deletes the job with the given pid and reports whether it existed.
func (t *Table) Remove(pid int) bool {
	i := t.find(pid)
	if i < 0 {
		return false
	}
	t.logger().Debug("deleted job", "jid", t.slots[i].JID, "pid", pid)
	t.slots[i] = Job{}
	return true
}

// SetState moves a tracked job to a new state.
func (t *Table) SetState(pid int, state State) error {
	i := t.find(pid)
	if i < 0 {
		return fmt.Errorf("%w: (%d)", ErrNotFound, pid)
	}
	if state == Foreground {
		if fg, ok := t.Foreground(); ok && fg.PID != pid {
			return fmt.Errorf("%w: [%d] (%d)", ErrForegroundBusy, fg.JID, fg.PID)
		}
	}
	if t.slots[i].State != state {
		t.logger().Debug("job state changed", "jid", t.slots[i].JID, "pid", pid,
			"from", t.slots[i].State.String(), "to", state.String())
	}
	t.slots[i].State = state
	return nil
}

func (t *Table) ByPID(pid int) (Job, bool) {
	i := t.find(pid)
	if i < 0 {
		return Job{}, false
	}
	return t.slots[i], true
}

func (t *Table) ByJID(jid int) (Job, bool) {
	if jid < 1 {
		return Job{}, false
	}
	for i := range t.slots {
		if t.slots[i].JID == jid {
			return t.slots[i], true
		}
	}
	return Job{}, false
}

// Foreground returns the job currently in the foreground, if any.
func (t *Table) Foreground() (Job, bool) {
	for i := range t.slots {
		if t.slots[i].PID != 0 && t.slots[i].State == Foreground {
			return t.slots[i], true
		}
	}
	return Job{}, false
}

func (t *Table) ForegroundPID() (int, bool) {
	fg, ok := t.Foreground()
	return fg.PID, ok
}

func (t *Table) Len() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].PID != 0 {
			n++
		}
	}
	return n
}

func (t *Table) Full() bool {
	return t.Len() == MaxJobs
}

// Snapshot returns a copy of the live jobs ordered by jid.
func (t *Table) Snapshot() []Job {
	out := make([]Job, 0, MaxJobs)
	for i := range t.slots {
		if t.slots[i].PID != 0 {
			out = append(out, t.slots[i])
		}
	}
	slices.SortFunc(out, func(a, b Job) int { return a.JID - b.JID })
	return out
}
