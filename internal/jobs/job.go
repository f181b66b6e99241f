package jobs

import (
	"errors"
	"strconv"
)

// MaxJobs is the number of jobs the shell tracks at any point in time.
const MaxJobs = 16

// State is the scheduling state of a job.
type State int

const (
	Undefined State = iota
	Foreground
	Background
	Stopped
)

// String returns the label used by the jobs listing.
func (s State) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Undefined(" + strconv.Itoa(int(s)) + ")"
	}
}

// Job is one command line tracked by the shell. For a pipeline PID is the
// last stage (the representative process) and PGID is the first stage.
type Job struct {
	PID     int
	PGID    int
	JID     int
	State   State
	Cmdline string
}

var (
	ErrFull           = errors.New("too many jobs")
	ErrNotFound       = errors.New("no such job")
	ErrDuplicatePID   = errors.New("pid already tracked")
	ErrInvalidPID     = errors.New("invalid pid")
	ErrForegroundBusy = errors.New("another job is in the foreground")
)
