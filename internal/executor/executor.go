package executor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"tsh/internal/jobs"
	"tsh/internal/parser"

	"golang.org/x/sys/unix"
)

// CommandNotFoundError is returned when the program of a command cannot be
// found or executed.
type CommandNotFoundError struct {
	Name string
	Err  error
}

func (e *CommandNotFoundError) Error() string { return e.Name + ": Command not found" }

func (e *CommandNotFoundError) Unwrap() error { return e.Err }

// Executor starts external commands and pipelines and tracks them as jobs.
type Executor struct {
	jobs   *jobs.Registry
	out    io.Writer
	stdin  *os.File
	stdout *os.File
	stderr *os.File
	log    *slog.Logger
}

type Option func(*Executor)

// WithStdio sets the descriptors children inherit when not redirected. None
// of them may be nil.
func WithStdio(stdin, stdout, stderr *os.File) Option {
	return func(e *Executor) {
		e.stdin, e.stdout, e.stderr = stdin, stdout, stderr
	}
}

func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.log = l } }

// New returns an Executor registering jobs in reg. Background announcements
// are written to out.
func New(reg *jobs.Registry, out io.Writer, opts ...Option) *Executor {
	e := &Executor{
		jobs:   reg,
		out:    out,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs a single command in its own process group. A foreground job
// is waited for before Execute returns. Nothing is opened or started when
// the job table is full.
func (e *Executor) Execute(tokens []parser.Token, background bool, cmdline string) error {
	if len(tokens) == 0 {
		return nil
	}
	r, err := parseRedirection(tokens)
	if err != nil {
		return err
	}
	if len(r.args) == 0 {
		return nil
	}

	g := e.jobs.Acquire()
	defer g.Release()
	if g.Full() {
		return jobs.ErrFull
	}

	files, err := r.open(e.stdin, e.stdout)
	if err != nil {
		return err
	}
	pid, err := e.start(r.args, files, 0)
	files.Close()
	if err != nil {
		return err
	}
	return e.track(g, pid, pid, background, cmdline)
}

// ExecutePipeline runs every stage in the first stage's process group, each
// stage reading the previous one's output. The last stage represents the
// job.
func (e *Executor) ExecutePipeline(stages [][]parser.Token, background bool, cmdline string) error {
	if len(stages) == 0 {
		return nil
	}
	redirs := make([]redirection, len(stages))
	for i, tokens := range stages {
		r, err := parseRedirection(tokens)
		if err != nil {
			return err
		}
		if len(r.args) == 0 {
			return fmt.Errorf("stage %d: empty command", i+1)
		}
		redirs[i] = r
	}

	g := e.jobs.Acquire()
	defer g.Release()
	if g.Full() {
		return jobs.ErrFull
	}

	var (
		prev *os.File // read end feeding the next stage
		pgid int
		pid  int
	)
	abort := func(err error) error {
		if prev != nil {
			_ = prev.Close()
		}
		if pgid > 0 {
			_ = unix.Kill(-pgid, unix.SIGKILL)
		}
		return err
	}

	for i, r := range redirs {
		stdin, stdout := e.stdin, e.stdout
		if prev != nil {
			stdin = prev
		}

		var next, w *os.File
		if i < len(redirs)-1 {
			var err error
			next, w, err = os.Pipe()
			if err != nil {
				return abort(fmt.Errorf("pipe: %w", err))
			}
			stdout = w
		}

		files, err := r.open(stdin, stdout)
		if err == nil {
			pid, err = e.start(r.args, files, pgid)
			files.Close()
		}
		if w != nil {
			_ = w.Close()
		}
		if err != nil {
			if next != nil {
				_ = next.Close()
			}
			return abort(err)
		}

		if prev != nil {
			_ = prev.Close()
		}
		prev = next
		if pgid == 0 {
			pgid = pid
		}
	}

	return e.track(g, pid, pgid, background, cmdline)
}

// start spawns one child joining pgid, or a new group of its own when pgid
// is 0. It returns once the child has replaced its image.
func (e *Executor) start(args []string, files *stdio, pgid int) (int, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = files.in
	cmd.Stdout = files.out
	cmd.Stderr = e.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, exec.ErrDot) ||
			errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return 0, &CommandNotFoundError{Name: args[0], Err: err}
		}
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	pid := cmd.Process.Pid
	// statuses are collected by the SIGCHLD handler, not by os/exec
	_ = cmd.Process.Release()

	want := pgid
	if want == 0 {
		want = pid
	}
	if got, err := unix.Getpgid(pid); err != nil || got != want {
		e.log.Warn("child is not in the expected process group", "pid", pid, "pgid", got, "want", want, "error", err)
	}
	return pid, nil
}

// track registers a started job. Background jobs are announced; foreground
// jobs are waited for with the guard still held.
func (e *Executor) track(g *jobs.Guard, pid, pgid int, background bool, cmdline string) error {
	state := jobs.Foreground
	if background {
		state = jobs.Background
	}
	job, err := g.Insert(pid, pgid, state, cmdline)
	if err != nil {
		_ = unix.Kill(-pgid, unix.SIGKILL)
		return fmt.Errorf("tracking (%d): %w", pid, err)
	}
	e.log.Debug("started job", "jid", job.JID, "pid", pid, "pgid", pgid, "background", background)

	if background {
		_, err := fmt.Fprintf(e.out, "[%d] (%d) %s\n", job.JID, job.PID, job.Cmdline)
		return err
	}
	WaitFG(g, pid)
	return nil
}
