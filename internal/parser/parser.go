package parser

import (
	"errors"
	"strings"
)

const (
	Pipe       = "|"
	Background = "&"
)

var ErrEmptyStage = errors.New("syntax error near unexpected token '|'")

// Token is one word of a command line. A quoted token is never an operator.
type Token struct {
	Text   string
	Quoted bool
}

// Is reports whether t is the unquoted operator op.
func (t Token) Is(op string) bool { return !t.Quoted && t.Text == op }

// Tokenize splits a command line on spaces. A token starting with a single
// quote runs to the next single quote and keeps the spaces inside it; an
// unterminated quote runs to the end of the line.
func Tokenize(input string) []Token {
	input = strings.TrimRight(input, "\r\n")

	var tokens []Token
	for {
		input = strings.TrimLeft(input, " \t")
		if input == "" {
			return tokens
		}

		if input[0] == '\'' {
			rest := input[1:]
			end := strings.IndexByte(rest, '\'')
			if end < 0 {
				return append(tokens, Token{Text: rest, Quoted: true})
			}
			tokens = append(tokens, Token{Text: rest[:end], Quoted: true})
			input = rest[end+1:]
			continue
		}

		end := strings.IndexAny(input, " \t")
		if end < 0 {
			return append(tokens, Token{Text: input})
		}
		tokens = append(tokens, Token{Text: input[:end]})
		input = input[end:]
	}
}

// Words returns the text of every token.
func Words(tokens []Token) []string {
	if len(tokens) == 0 {
		return nil
	}
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Text
	}
	return words
}

// TrimBackground detects a trailing & and returns the tokens without it.
func TrimBackground(tokens []Token) ([]Token, bool) {
	if len(tokens) > 0 && tokens[len(tokens)-1].Is(Background) {
		return tokens[:len(tokens)-1], true
	}
	return tokens, false
}

func HasPipe(tokens []Token) bool {
	for _, tok := range tokens {
		if tok.Is(Pipe) {
			return true
		}
	}
	return false
}

// SplitPipeline splits tokens into stages on every unquoted | token.
func SplitPipeline(tokens []Token) ([][]Token, error) {
	var (
		stages  [][]Token
		current []Token
	)
	for _, tok := range tokens {
		if !tok.Is(Pipe) {
			current = append(current, tok)
			continue
		}
		if len(current) == 0 {
			return nil, ErrEmptyStage
		}
		stages = append(stages, current)
		current = nil
	}
	if len(current) == 0 {
		return nil, ErrEmptyStage
	}
	return append(stages, current), nil
}
