package executor

import "tsh/internal/jobs"

// WaitFG blocks until pid is no longer the foreground job. The caller holds g;
// it is given up while waiting so the signal handler can update the table.
func WaitFG(g *jobs.Guard, pid int) {
	for {
		fg, ok := g.ForegroundPID()
		if !ok || fg != pid {
			return
		}
		g.Wait()
	}
}
