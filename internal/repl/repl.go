package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tsh/internal/builtins"
	"tsh/internal/executor"
	"tsh/internal/jobs"
	"tsh/internal/parser"
)

// Launcher starts external commands.
type Launcher interface {
	Execute(tokens []parser.Token, background bool, cmdline string) error
	ExecutePipeline(stages [][]parser.Token, background bool, cmdline string) error
}

// Shell reads command lines and dispatches them to the built-ins or to the
// launcher.
type Shell struct {
	builtins *builtins.Builtins
	launcher Launcher
	out      io.Writer
	prompt   string
	emit     bool
}

func New(b *builtins.Builtins, l Launcher, out io.Writer, prompt string, emitPrompt bool) *Shell {
	return &Shell{
		builtins: b,
		launcher: l,
		out:      out,
		prompt:   prompt,
		emit:     emitPrompt,
	}
}

// Run evaluates lines from in until end of input. A context that is already
// done stops the loop before the next prompt.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if s.emit {
			fmt.Fprint(s.out, s.prompt)
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			s.Eval(line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading command line: %w", err)
		}
	}
}

// Eval runs one command line.
func (s *Shell) Eval(line string) {
	cmdline := strings.TrimRight(line, "\r\n")
	tokens := parser.Tokenize(cmdline)
	if len(tokens) == 0 {
		return
	}

	if s.builtins.Handle(parser.Words(tokens)) {
		return
	}

	tokens, background := parser.TrimBackground(tokens)
	if len(tokens) == 0 {
		return
	}

	var err error
	if parser.HasPipe(tokens) {
		var stages [][]parser.Token
		stages, err = parser.SplitPipeline(tokens)
		if err == nil {
			err = s.launcher.ExecutePipeline(stages, background, cmdline)
		}
	} else {
		err = s.launcher.Execute(tokens, background, cmdline)
	}
	if err != nil {
		s.report(err)
	}
}

func (s *Shell) report(err error) {
	var notFound *executor.CommandNotFoundError
	switch {
	case errors.As(err, &notFound):
		fmt.Fprintln(s.out, notFound.Error())
	case errors.Is(err, jobs.ErrFull):
		fmt.Fprintln(s.out, "tsh: too many jobs")
	default:
		fmt.Fprintf(s.out, "tsh: %v\n", err)
	}
}
