package jobs_test

import (
	"log/slog"
	"math/rand/v2"
	"testing"

	"tsh/internal/jobs"

	"github.com/stretchr/testify/require"
)

func newTable() *jobs.Table {
	return jobs.NewTable(slog.New(slog.DiscardHandler))
}

func TestInsertAssignsSmallestFreeJID(t *testing.T) {
	t.Parallel()
	tbl := newTable()

	for i := 1; i <= 4; i++ {
		job, err := tbl.Insert(100+i, 0, jobs.Background, "sleep 1")
		require.NoError(t, err)
		require.Equal(t, i, job.JID)
		require.Equal(t, 100+i, job.PGID)
	}

	require.True(t, tbl.Remove(102))
	require.True(t, tbl.Remove(104))

	job, err := tbl.Insert(200, 0, jobs.Background, "sleep 2")
	require.NoError(t, err)
	require.Equal(t, 2, job.JID)

	job, err = tbl.Insert(201, 0, jobs.Background, "sleep 3")
	require.NoError(t, err)
	require.Equal(t, 4, job.JID)
}

func TestInsertErrors(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		setup    func(*jobs.Table)
		pid      int
		state    jobs.State
		then     error
	}{
		{"invalid pid", func(*jobs.Table) {}, 0, jobs.Background, jobs.ErrInvalidPID},
		{"duplicate pid", func(tbl *jobs.Table) {
			_, _ = tbl.Insert(10, 0, jobs.Background, "a")
		}, 10, jobs.Background, jobs.ErrDuplicatePID},
		{"second foreground", func(tbl *jobs.Table) {
			_, _ = tbl.Insert(10, 0, jobs.Foreground, "a")
		}, 11, jobs.Foreground, jobs.ErrForegroundBusy},
		{"full", func(tbl *jobs.Table) {
			for i := range jobs.MaxJobs {
				_, _ = tbl.Insert(1000+i, 0, jobs.Background, "a")
			}
		}, 11, jobs.Background, jobs.ErrFull},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			tbl := newTable()
			tt.setup(tbl)
			before := tbl.Snapshot()

			_, err := tbl.Insert(tt.pid, 0, tt.state, "b")
			require.ErrorIs(t, err, tt.then)
			require.Equal(t, before, tbl.Snapshot())
		})
	}
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	_, err := tbl.Insert(7, 0, jobs.Background, "other")
	require.NoError(t, err)
	before := tbl.Snapshot()

	job, err := tbl.Insert(42, 40, jobs.Stopped, "cat | wc")
	require.NoError(t, err)
	got, ok := tbl.ByJID(job.JID)
	require.True(t, ok)
	require.Equal(t, job, got)

	require.True(t, tbl.Remove(42))
	require.False(t, tbl.Remove(42))

	_, ok = tbl.ByPID(42)
	require.False(t, ok)
	_, ok = tbl.ByJID(job.JID)
	require.False(t, ok)
	require.Equal(t, before, tbl.Snapshot())
}

func TestSetState(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	_, err := tbl.Insert(1, 0, jobs.Foreground, "a")
	require.NoError(t, err)
	_, err = tbl.Insert(2, 0, jobs.Stopped, "b")
	require.NoError(t, err)

	require.ErrorIs(t, tbl.SetState(2, jobs.Foreground), jobs.ErrForegroundBusy)
	require.ErrorIs(t, tbl.SetState(3, jobs.Background), jobs.ErrNotFound)

	require.NoError(t, tbl.SetState(1, jobs.Stopped))
	_, ok := tbl.ForegroundPID()
	require.False(t, ok)

	require.NoError(t, tbl.SetState(2, jobs.Foreground))
	pid, ok := tbl.ForegroundPID()
	require.True(t, ok)
	require.Equal(t, 2, pid)
}

func TestSnapshotOrderedByJID(t *testing.T) {
	t.Parallel()
	tbl := newTable()
	for _, pid := range []int{30, 31, 32} {
		_, err := tbl.Insert(pid, 0, jobs.Background, "x")
		require.NoError(t, err)
	}
	require.True(t, tbl.Remove(30))
	_, err := tbl.Insert(33, 0, jobs.Background, "y")
	require.NoError(t, err)

	var jids, pids []int
	for _, j := range tbl.Snapshot() {
		jids = append(jids, j.JID)
		pids = append(pids, j.PID)
	}
	require.Equal(t, []int{1, 2, 3}, jids)
	require.Equal(t, []int{33, 31, 32}, pids)
}

func TestStateLabels(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Running", jobs.Background.String())
	require.Equal(t, "Foreground", jobs.Foreground.String())
	require.Equal(t, "Stopped", jobs.Stopped.String())
	require.Equal(t, "Undefined(9)", jobs.State(9).String())
}

// random spawn/stop/continue/exit sequences must never leave two foreground
// jobs and must always hand out the smallest free jid
func TestRandomOperationsKeepInvariants(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewPCG(1, 2))
	tbl := newTable()
	nextPID := 100

	for range 5000 {
		live := tbl.Snapshot()
		switch rnd.IntN(4) {
		case 0:
			state := jobs.Background
			if rnd.IntN(2) == 0 {
				state = jobs.Foreground
			}
			want := smallestFree(live)
			job, err := tbl.Insert(nextPID, 0, state, "cmd")
			nextPID++
			if err == nil {
				require.Equal(t, want, job.JID)
			}
		case 1:
			if len(live) > 0 {
				j := live[rnd.IntN(len(live))]
				_ = tbl.SetState(j.PID, jobs.Stopped)
			}
		case 2:
			if len(live) > 0 {
				j := live[rnd.IntN(len(live))]
				_ = tbl.SetState(j.PID, []jobs.State{jobs.Foreground, jobs.Background}[rnd.IntN(2)])
			}
		case 3:
			if len(live) > 0 {
				require.True(t, tbl.Remove(live[rnd.IntN(len(live))].PID))
			}
		}

		fg := 0
		for _, j := range tbl.Snapshot() {
			if j.State == jobs.Foreground {
				fg++
			}
		}
		require.LessOrEqual(t, fg, 1)
	}
}

func smallestFree(live []jobs.Job) int {
	taken := map[int]bool{}
	for _, j := range live {
		taken[j.JID] = true
	}
	for jid := 1; jid <= jobs.MaxJobs; jid++ {
		if !taken[jid] {
			return jid
		}
	}
	return 0
}
