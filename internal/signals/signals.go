// Package signals turns asynchronously delivered signals into job table
// updates: SIGCHLD reaps children, SIGINT and SIGTSTP are forwarded to the
// foreground job's process group and SIGQUIT terminates the shell.
//
// Every handler takes the job registry guard first. Code that spawns a child
// and registers it under one guard hold can therefore never see the child
// reaped before it is tracked.
package signals

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"tsh/internal/jobs"

	"golang.org/x/sys/unix"
)

const quitNotice = "Terminating after receipt of SIGQUIT signal\n"

// Handled lists the signals the shell takes over from their default action.
var Handled = []os.Signal{unix.SIGCHLD, unix.SIGINT, unix.SIGTSTP, unix.SIGQUIT}

// ReapFunc collects one pending child status without blocking. A zero pid
// means nothing is pending.
type ReapFunc func() (pid int, status unix.WaitStatus, err error)

type KillFunc func(pid int, sig unix.Signal) error

type Handler struct {
	jobs *jobs.Registry
	out  io.Writer
	reap ReapFunc
	kill KillFunc
	exit func(code int)
	log  *slog.Logger
}

type Option func(*Handler)

func WithReaper(f ReapFunc) Option { return func(h *Handler) { h.reap = f } }

func WithKiller(f KillFunc) Option { return func(h *Handler) { h.kill = f } }

func WithExit(f func(code int)) Option { return func(h *Handler) { h.exit = f } }

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.log = l } }

// New returns a handler updating reg and writing job notices to out.
func New(reg *jobs.Registry, out io.Writer, opts ...Option) *Handler {
	h := &Handler{
		jobs: reg,
		out:  out,
		reap: Reap,
		kill: unix.Kill,
		exit: os.Exit,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Reap is the default ReapFunc: wait4 on any child, reporting stops too.
func Reap() (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
	return pid, ws, err
}

// Subscribe starts delivery of the handled signals. Call it before the first
// child is spawned so that none of them falls back to its default action.
func Subscribe() chan os.Signal {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, Handled...)
	return sigs
}

// Run dispatches signals from sigs until ctx is done, then stops delivery.
func (h *Handler) Run(ctx context.Context, sigs chan os.Signal) error {
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			h.Handle(sig)
		}
	}
}

func (h *Handler) Handle(sig os.Signal) {
	switch sig {
	case unix.SIGCHLD:
		h.Child()
	case unix.SIGINT:
		h.Interrupt()
	case unix.SIGTSTP:
		h.TerminalStop()
	case unix.SIGQUIT:
		h.Quit()
	default:
		h.log.Debug("ignoring signal", "signal", sig.String())
	}
}

// Child collects every child status available right now. Stopped jobs are
// marked Stopped, jobs killed by a signal are announced and removed, jobs
// that exited are removed silently. Statuses of untracked children are
// dropped.
func (h *Handler) Child() {
	g := h.jobs.Acquire()
	defer g.Release()

	var buf [noticeSize]byte
	for {
		pid, ws, err := h.reap()
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				h.log.Warn("wait4 failed", "error", err)
			}
			return
		}
		if pid <= 0 {
			return
		}

		job, tracked := g.ByPID(pid)
		switch {
		case !tracked:
			h.log.Debug("reaped untracked child", "pid", pid)
		case ws.Stopped():
			_ = g.SetState(pid, jobs.Stopped)
			h.write(notice(&buf, job.JID, pid, "stopped", int(ws.StopSignal())))
		case ws.Signaled():
			h.write(notice(&buf, job.JID, pid, "terminated", int(ws.Signal())))
			g.Remove(pid)
		case ws.Exited():
			h.log.Debug("job exited", "jid", job.JID, "pid", pid, "status", ws.ExitStatus())
			g.Remove(pid)
		}
	}
}

// Interrupt forwards SIGINT to the foreground job's process group.
func (h *Handler) Interrupt() {
	g := h.jobs.Acquire()
	defer g.Release()

	fg, ok := g.Foreground()
	if !ok {
		return
	}
	if err := h.kill(-fg.PGID, unix.SIGINT); err != nil {
		h.log.Warn("forwarding SIGINT failed", "pgid", fg.PGID, "error", err)
	}
}

// TerminalStop forwards SIGTSTP to the foreground job's process group and
// marks the job Stopped right away. The SIGCHLD that follows marks it again.
func (h *Handler) TerminalStop() {
	g := h.jobs.Acquire()
	defer g.Release()

	fg, ok := g.Foreground()
	if !ok {
		return
	}
	if err := h.kill(-fg.PGID, unix.SIGTSTP); err != nil {
		h.log.Warn("forwarding SIGTSTP failed", "pgid", fg.PGID, "error", err)
	}
	_ = g.SetState(fg.PID, jobs.Stopped)
}

// Quit ends the shell without touching its children.
func (h *Handler) Quit() {
	h.write([]byte(quitNotice))
	h.exit(1)
}

func (h *Handler) write(b []byte) {
	if _, err := h.out.Write(b); err != nil {
		h.log.Error("writing notice failed", "error", err)
		h.exit(1)
	}
}

const noticeSize = 96

// notice renders "Job [jid] (pid) <what> by signal N\n" into buf.
func notice(buf *[noticeSize]byte, jid, pid int, what string, sig int) []byte {
	b := buf[:0]
	b = append(b, "Job ["...)
	b = strconv.AppendInt(b, int64(jid), 10)
	b = append(b, "] ("...)
	b = strconv.AppendInt(b, int64(pid), 10)
	b = append(b, ") "...)
	b = append(b, what...)
	b = append(b, " by signal "...)
	b = strconv.AppendInt(b, int64(sig), 10)
	return append(b, '\n')
}
