// Package sanitize turns free-form model output into an ordered list of
// shell command lines.
//
// It is a heuristic filter, not a parser: it strips markdown fences,
// wrapping quotes and a couple of conversational openers, and leaves
// everything else alone.
package sanitize

import "strings"

// quoteOrder is applied outermost first, once per kind.
var quoteOrder = []string{"`", `"`, "'"}

var fenceMarkers = map[string]bool{
	"```":      true,
	"```bash":  true,
	"```shell": true,
	"```sh":    true,
}

// conversationalOpeners are matched as plain prefixes, so "Surefire ..." is
// dropped along with "Sure! Here is ...".
var conversationalOpeners = []string{"Sure", "Here"}

// Clean splits raw model text into command lines, in their original order.
// A response where every line is filtered yields an empty, non-nil slice.
func Clean(raw string) []string {
	commands := []string{}
	for _, line := range strings.Split(raw, "\n") {
		// Leading whitespace is kept: the model may emit an indented heredoc body.
		line = trimTrailing(line)
		// Fences are matched before unquoting: a bare ``` would otherwise
		// unquote to a single backtick.
		if dropLine(line) {
			continue
		}

		line = trimTrailing(UnquoteAll(line, quoteOrder...))
		if dropLine(line) {
			continue
		}
		commands = append(commands, line)
	}
	return commands
}

// Unquote removes one matched pair of quote from around s. A single quote
// character on its own unquotes to the empty string.
func Unquote(s, quote string) string {
	if !strings.HasPrefix(s, quote) || !strings.HasSuffix(s, quote) {
		return s
	}
	if len(s) < 2*len(quote) {
		return ""
	}
	return s[len(quote) : len(s)-len(quote)]
}

// UnquoteAll applies Unquote once for each quote, in the given order.
func UnquoteAll(s string, quotes ...string) string {
	for _, q := range quotes {
		s = Unquote(s, q)
	}
	return s
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r\n\v\f")
}

func dropLine(line string) bool {
	if line == "" || fenceMarkers[line] {
		return true
	}
	for _, opener := range conversationalOpeners {
		if strings.HasPrefix(line, opener) {
			return true
		}
	}
	return false
}
