package ui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"
)

// Action represents the user's choice
type Action int

const (
	ActionRun Action = iota
	ActionCancel
	ActionModify
	ActionCopy
)

const (
	choiceRun    = "Run them"
	choiceModify = "Modify the request"
	choiceCopy   = "Copy to clipboard"
	choiceCancel = "Cancel"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass --yolo to run commands without confirmation")

// IsInteractive reports whether stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ConfirmCommands asks the user what to do with the commands already shown.
// Ctrl-C counts as cancel.
func ConfirmCommands() (Action, error) {
	if !IsInteractive() {
		return ActionCancel, ErrNotInteractive
	}

	var choice string
	prompt := &survey.Select{
		Message: "Run the above commands?",
		Options: []string{choiceRun, choiceModify, choiceCopy, choiceCancel},
		Default: choiceCancel,
	}

	if err := survey.AskOne(prompt, &choice); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return ActionCancel, nil
		}
		return ActionCancel, err
	}

	return actionFor(choice), nil
}

func actionFor(choice string) Action {
	switch choice {
	case choiceRun:
		return ActionRun
	case choiceModify:
		return ActionModify
	case choiceCopy:
		return ActionCopy
	default:
		return ActionCancel
	}
}

// PromptForModification asks the user how to change the request
func PromptForModification() (string, error) {
	var modification string
	prompt := &survey.Input{
		Message: "What should change?",
	}

	if err := survey.AskOne(prompt, &modification, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}

	return strings.TrimSpace(modification), nil
}

// ShowMenu lets the user pick one option and returns its index
func ShowMenu(message string, options []string, defaultOption string) (int, error) {
	var selected int
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if defaultOption != "" {
		prompt.Default = defaultOption
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return -1, err
	}
	return selected, nil
}

// PromptSecret asks for a value without echoing it. An empty answer keeps
// the current value.
func PromptSecret(message, current string) (string, error) {
	var value string
	prompt := &survey.Password{Message: message}
	if current != "" {
		prompt.Help = "Leave empty to keep the current value"
	}

	if err := survey.AskOne(prompt, &value); err != nil {
		return "", err
	}
	if value = strings.TrimSpace(value); value == "" {
		return current, nil
	}
	return value, nil
}

// PromptInput asks for a line of text with a default.
func PromptInput(message, defaultValue string) (string, error) {
	var value string
	prompt := &survey.Input{Message: message, Default: defaultValue}

	if err := survey.AskOne(prompt, &value); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// PromptTemperature asks for a sampling temperature between 0 and 2.
func PromptTemperature(current float64) (float64, error) {
	var value string
	prompt := &survey.Input{
		Message: "Sampling temperature:",
		Default: strconv.FormatFloat(current, 'f', -1, 64),
	}

	if err := survey.AskOne(prompt, &value, survey.WithValidator(validateTemperature)); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

func validateTemperature(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return fmt.Errorf("expected text, got %T", ans)
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	if t < 0 || t > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// PromptYesNo asks a yes/no question
func PromptYesNo(message string, defaultYes bool) (bool, error) {
	answer := defaultYes
	prompt := &survey.Confirm{Message: message, Default: defaultYes}

	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}
	return answer, nil
}
