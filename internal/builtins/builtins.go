package builtins

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tsh/internal/executor"
	"tsh/internal/jobs"

	"golang.org/x/sys/unix"
)

var ErrBadTarget = errors.New("argument must be a PID or %jid")

type NoSuchJobError struct{ JID int }

func (e *NoSuchJobError) Error() string { return fmt.Sprintf("%%%d: No such job", e.JID) }

type NoSuchProcessError struct{ PID int }

func (e *NoSuchProcessError) Error() string { return fmt.Sprintf("(%d): No such process", e.PID) }

// TransitionError reports a bg/fg request the job's current state does not
// allow. The job is left as it was.
type TransitionError struct {
	Cmd string
	Job jobs.Job
}

func (e *TransitionError) Error() string {
	switch e.Job.State {
	case jobs.Background:
		return fmt.Sprintf("%s: job [%d] (%d) already running", e.Cmd, e.Job.JID, e.Job.PID)
	case jobs.Foreground:
		return fmt.Sprintf("%s: job [%d] (%d) is in the foreground", e.Cmd, e.Job.JID, e.Job.PID)
	default:
		return fmt.Sprintf("%s: job [%d] (%d) cannot change state", e.Cmd, e.Job.JID, e.Job.PID)
	}
}

// Builtins runs the commands the shell executes itself.
type Builtins struct {
	jobs *jobs.Registry
	out  io.Writer
	kill func(pid int, sig unix.Signal) error
	exit func(code int)
}

type Option func(*Builtins)

func WithKiller(f func(pid int, sig unix.Signal) error) Option {
	return func(b *Builtins) { b.kill = f }
}

func WithExit(f func(code int)) Option { return func(b *Builtins) { b.exit = f } }

func New(reg *jobs.Registry, out io.Writer, opts ...Option) *Builtins {
	b := &Builtins{
		jobs: reg,
		out:  out,
		kill: unix.Kill,
		exit: os.Exit,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// IsBuiltin reports whether name is run by the shell itself.
func IsBuiltin(name string) bool {
	switch name {
	case "quit", "jobs", "bg", "fg", "cd", "pwd":
		return true
	}
	return false
}

// Handle runs tokens if they name a built-in and reports whether they did.
// Errors are printed; none of them ends the shell.
func (b *Builtins) Handle(tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	if !IsBuiltin(tokens[0]) {
		return false
	}

	switch tokens[0] {
	case "quit":
		b.exit(0)
	case "jobs":
		b.list()
	case "bg", "fg":
		if err := b.bgfg(tokens); err != nil {
			fmt.Fprintln(b.out, err)
		}
	case "cd":
		b.cd(tokens)
	case "pwd":
		b.pwd()
	}
	return true
}

func (b *Builtins) list() {
	for _, job := range b.jobs.Snapshot() {
		fmt.Fprintf(b.out, "[%d] (%d) %s %s\n", job.JID, job.PID, job.State, job.Cmdline)
	}
}

func (b *Builtins) cd(tokens []string) {
	dir := os.Getenv("HOME")
	if len(tokens) > 1 {
		dir = tokens[1]
	}
	if dir == "" {
		fmt.Fprintln(b.out, "cd: missing argument")
		return
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintln(b.out, "cd:", err)
	}
}

func (b *Builtins) pwd() {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(b.out, "pwd:", err)
		return
	}
	fmt.Fprintln(b.out, dir)
}

func (b *Builtins) bgfg(tokens []string) error {
	name := tokens[0]
	if len(tokens) < 2 {
		return fmt.Errorf("%s: %w", name, ErrBadTarget)
	}

	g := b.jobs.Acquire()
	defer g.Release()

	job, err := resolve(g, name, tokens[1])
	if err != nil {
		return err
	}

	switch {
	case name == "bg" && job.State == jobs.Stopped:
		if err := b.kill(-job.PGID, unix.SIGCONT); err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		if err := g.SetState(job.PID, jobs.Background); err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		fmt.Fprintf(b.out, "[%d] (%d) %s\n", job.JID, job.PID, job.Cmdline)
	case name == "bg":
		return &TransitionError{Cmd: name, Job: job}
	default:
		if job.State == jobs.Stopped {
			if err := b.kill(-job.PGID, unix.SIGCONT); err != nil {
				return fmt.Errorf("fg: %w", err)
			}
		}
		if err := g.SetState(job.PID, jobs.Foreground); err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		executor.WaitFG(g, job.PID)
	}
	return nil
}

// resolve finds the job named by a %jid or pid argument.
func resolve(g *jobs.Guard, name, arg string) (jobs.Job, error) {
	if jid, ok := strings.CutPrefix(arg, "%"); ok {
		n, err := strconv.Atoi(jid)
		if err != nil || n < 1 {
			return jobs.Job{}, fmt.Errorf("%s: %w", name, ErrBadTarget)
		}
		job, found := g.ByJID(n)
		if !found {
			return jobs.Job{}, &NoSuchJobError{JID: n}
		}
		return job, nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return jobs.Job{}, fmt.Errorf("%s: %w", name, ErrBadTarget)
	}
	job, found := g.ByPID(n)
	if !found {
		return jobs.Job{}, &NoSuchProcessError{PID: n}
	}
	return job, nil
}
