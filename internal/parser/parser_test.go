package parser_test

import (
	"testing"

	"tsh/internal/parser"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     []string
	}{
		{"empty", "\n", nil},
		{"blank", "   \t \n", nil},
		{"words", "ls -l /tmp\n", []string{"ls", "-l", "/tmp"}},
		{"extra spaces", "  echo   a  b ", []string{"echo", "a", "b"}},
		{"quoted span", "echo 'hello world' x\n", []string{"echo", "hello world", "x"}},
		{"quoted first", "'my prog' arg", []string{"my prog", "arg"}},
		{"empty quotes", "echo '' x", []string{"echo", "", "x"}},
		{"unterminated quote", "echo 'a b", []string{"echo", "a b"}},
		{"background", "sleep 1 &\n", []string{"sleep", "1", "&"}},
		{"pipeline", "ls | wc -l", []string{"ls", "|", "wc", "-l"}},
		{"redirection", "cat < in > out", []string{"cat", "<", "in", ">", "out"}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.then, parser.Words(parser.Tokenize(tt.given)))
		})
	}
}

func TestTokenizeMarksQuotedTokens(t *testing.T) {
	t.Parallel()

	tokens := parser.Tokenize("echo '<b>' > out '|' '&'")
	require.Equal(t, []parser.Token{
		{Text: "echo"},
		{Text: "<b>", Quoted: true},
		{Text: ">"},
		{Text: "out"},
		{Text: "|", Quoted: true},
		{Text: "&", Quoted: true},
	}, tokens)

	require.True(t, tokens[2].Is(">"))
	require.False(t, tokens[4].Is(parser.Pipe))
	require.False(t, parser.HasPipe(tokens))
}

func TestTrimBackground(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario   string
		given      string
		then       []string
		background bool
	}{
		{"trailing marker", "sleep 10 &\n", []string{"sleep", "10"}, true},
		{"no marker", "sleep 10\n", []string{"sleep", "10"}, false},
		{"quoted marker", "echo '&'\n", []string{"echo", "&"}, false},
		{"lone marker", "&", nil, true},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			tokens, bg := parser.TrimBackground(parser.Tokenize(tt.given))
			require.Equal(t, tt.background, bg)
			require.Equal(t, tt.then, parser.Words(tokens))
		})
	}
}

func TestSplitPipeline(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     [][]string
		wantErr  bool
	}{
		{"single", "ls", [][]string{{"ls"}}, false},
		{"three stages", "a -x | b | c y", [][]string{{"a", "-x"}, {"b"}, {"c", "y"}}, false},
		{"quoted pipe stays in the stage", "grep '|' f | wc", [][]string{{"grep", "|", "f"}, {"wc"}}, false},
		{"leading pipe", "| b", nil, true},
		{"trailing pipe", "a |", nil, true},
		{"double pipe", "a | | b", nil, true},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			tokens := parser.Tokenize(tt.given)
			got, err := parser.SplitPipeline(tokens)
			if tt.wantErr {
				require.ErrorIs(t, err, parser.ErrEmptyStage)
				return
			}
			require.NoError(t, err)

			words := make([][]string, len(got))
			for i, stage := range got {
				words[i] = parser.Words(stage)
			}
			require.Equal(t, tt.then, words)
			require.Equal(t, len(tt.then) > 1, parser.HasPipe(tokens))
		})
	}
}
