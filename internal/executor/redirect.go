package executor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"tsh/internal/parser"
)

var ErrMissingRedirectTarget = errors.New("syntax error: missing file name after redirection")

type redirection struct {
	args       []string
	inFile     string
	outFile    string
	appendMode bool
}

// parseRedirection pulls "< file", "> file" and ">> file" (operator and name
// may also be written together) out of a stage's tokens. Quoted tokens are
// always arguments.
func parseRedirection(tokens []parser.Token) (redirection, error) {
	var r redirection
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i].Text
		if tokens[i].Quoted {
			r.args = append(r.args, tok)
			continue
		}

		var (
			target *string
			op     string
		)
		switch {
		case strings.HasPrefix(tok, "<"):
			target, op = &r.inFile, "<"
		case strings.HasPrefix(tok, ">>"):
			target, op = &r.outFile, ">>"
			r.appendMode = true
		case strings.HasPrefix(tok, ">"):
			target, op = &r.outFile, ">"
			r.appendMode = false
		default:
			r.args = append(r.args, tok)
			continue
		}

		if name := tok[len(op):]; name != "" {
			*target = name
			continue
		}
		if i+1 >= len(tokens) {
			return redirection{}, fmt.Errorf("%w %s", ErrMissingRedirectTarget, op)
		}
		*target = tokens[i+1].Text
		i++
	}
	return r, nil
}

// stdio holds the descriptors handed to one child. The parent owns opened
// and must close them once the child has been started.
type stdio struct {
	in, out *os.File
	opened  []*os.File
}

func (r redirection) open(in, out *os.File) (*stdio, error) {
	s := &stdio{in: in, out: out}
	if r.inFile != "" {
		f, err := os.Open(r.inFile)
		if err != nil {
			return nil, err
		}
		s.in = f
		s.opened = append(s.opened, f)
	}
	if r.outFile != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if r.appendMode {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(r.outFile, flags, 0o600)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.out = f
		s.opened = append(s.opened, f)
	}
	return s, nil
}

func (s *stdio) Close() {
	for _, f := range s.opened {
		_ = f.Close()
	}
	s.opened = nil
}
