// Package prompt builds the situational system prompt sent with every
// request, shrinking the embedded environment facts until the prompt fits
// the model's token budget.
package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/randombk/llm2sh/internal/sysfacts"
)

const (
	// charsPerToken is the rough estimate used for all budgeting.
	charsPerToken = 4

	// minEnvVars is the floor for the environment listing. Directory
	// listings have no floor.
	minEnvVars = 20

	shrinkRate          = 0.9
	maxShrinkIterations = 64
)

// Prompt is a rendered system prompt together with the budget it was fitted to.
type Prompt struct {
	Text            string
	Factor          float64
	EstimatedTokens int
	MaxTokens       int
	Iterations      int
}

// BuildError reports that no summarize factor brought the prompt within
// budget, which only happens when the request itself eats the budget.
type BuildError struct {
	EstimatedTokens int
	MaxTokens       int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("system prompt needs ~%d tokens but only %d are available; shorten the request",
		e.EstimatedTokens, e.MaxTokens)
}

// Builder renders system prompts from a facts provider.
type Builder struct {
	facts            sysfacts.Provider
	maxContextLength int
}

// NewBuilder creates a prompt builder for a model with the given context
// window, in tokens.
func NewBuilder(facts sysfacts.Provider, maxContextLength int) *Builder {
	return &Builder{
		facts:            facts,
		maxContextLength: maxContextLength,
	}
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	return len(s) / charsPerToken
}

// MaxSystemPromptLength is the token budget for the system prompt: half the
// context window is kept for the output, and the request is taken out of
// the other half.
func MaxSystemPromptLength(maxContextLength int, request string) int {
	return maxContextLength/2 - len(request)/charsPerToken + 1
}

// Build renders the prompt for request. It starts from the full environment
// and shrinks the summarize factor by 0.9 * (budget / estimate) until the
// estimate is within budget.
func (b *Builder) Build(request string) (Prompt, error) {
	maxTokens := MaxSystemPromptLength(b.maxContextLength, request)
	snap := b.snapshot()

	factor := 1.0
	text := snap.render(factor)
	for i := 0; ; i++ {
		estimated := EstimateTokens(text)
		if estimated <= maxTokens {
			if i > 0 {
				slog.Debug("prompt_shrunk",
					"factor", factor,
					"iterations", i,
					"estimated_tokens", estimated,
					"max_tokens", maxTokens,
				)
			}
			return Prompt{
				Text:            text,
				Factor:          factor,
				EstimatedTokens: estimated,
				MaxTokens:       maxTokens,
				Iterations:      i,
			}, nil
		}

		if factor == 0 {
			return Prompt{}, &BuildError{EstimatedTokens: estimated, MaxTokens: maxTokens}
		}

		factor *= shrinkRate * float64(maxTokens) / float64(estimated)
		// A non-positive budget, or floating point dust after the iteration
		// cap, goes straight to the minimal prompt.
		if factor <= 0 || i+1 >= maxShrinkIterations {
			factor = 0
		}
		text = snap.render(factor)
	}
}

// snapshot is one read of the facts provider, so every shrink iteration
// renders the same environment.
type snapshot struct {
	user    string
	cwd     string
	entries []string
	env     []string
	release string
}

func (b *Builder) snapshot() snapshot {
	return snapshot{
		user:    b.facts.Username(),
		cwd:     b.facts.WorkingDir(),
		entries: b.facts.DirEntries(),
		env:     FilterEnv(b.facts.EnvNames()),
		release: b.facts.OSRelease(),
	}
}

func (s snapshot) render(factor float64) string {
	var sb strings.Builder

	sb.WriteString(preamble)
	fmt.Fprintf(&sb, "The user is currently logged in as `%s` and the current working directory is `%s`.\n\n",
		s.user, s.cwd)

	sb.WriteString("The current directory contains the following files:\n")
	writeItems(&sb, TruncateEntries(s.entries, factor))
	sb.WriteString("\n")

	sb.WriteString("You can refer to the following environment variables:\n")
	writeItems(&sb, SelectEnv(s.env, factor))
	sb.WriteString("\n")

	if s.release != "" {
		fmt.Fprintf(&sb, "The OS is: %s\n\n", s.release)
	}

	sb.WriteString(instructions)
	return sb.String()
}

func writeItems(sb *strings.Builder, items []string) {
	for _, item := range items {
		sb.WriteString(" - ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}

// TruncateEntries keeps the first floor(n * factor) entries, in order.
func TruncateEntries(entries []string, factor float64) []string {
	return entries[:scaled(len(entries), factor)]
}

// SelectEnv keeps the first max(floor(n * factor), 20) names, or all of
// them when fewer are available.
func SelectEnv(names []string, factor float64) []string {
	take := max(scaled(len(names), factor), minEnvVars)
	return names[:min(take, len(names))]
}

func scaled(n int, factor float64) int {
	k := int(float64(n) * factor)
	return max(0, min(k, n))
}

const preamble = "You are an AI helping the user perform tasks in a Bash shell. The user will give you a request,\n" +
	"and you will generate one or more shell commands to fulfill that request. You can use any shell constructs,\n" +
	"including pipes, redirection, and loops. You can also use any commands available in the shell environment.\n" +
	"The shell is configured with `set -e`, so generate appropriate error handling for commands that are allowed\n" +
	"to fail.\n\n"

const instructions = "Make sure you output valid shell commands. Everything you output must be ready to copy+paste directly into a terminal.\n" +
	"This means:\n" +
	"  * Pay special attention to quoting and escaping.\n" +
	"  * Do not wrap the response in quotes, backticks, markdown, etc.\n" +
	"  * If you want to provide additional information or commentary, put it in a shell comment (`#`)\n" +
	"    or use `echo \"...\"`.\n\n" +
	"For more complex tasks, you can use `cat` to write a Python script to a file and then execute it.\n\n" +
	"YOU MUST RESPOND WITH ONLY VALID SHELL COMMANDS. DO NOT INCLUDE ANYTHING ELSE IN YOUR RESPONSE.\n"
