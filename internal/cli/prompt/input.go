// Package prompt wraps promptui for the interactive commands.
package prompt

import (
	"errors"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err comes from an aborted prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError folds promptui's interrupt and abort errors into ErrAborted
// so callers match on one sentinel.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// run executes p and normalizes its error.
func run(p promptui.Prompt) (string, error) {
	result, err := p.Run()
	return result, wrapError(err)
}

// Input prompts for text, offering defaultValue.
func Input(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	})
}

// InputRequired prompts for text and refuses empty input.
func InputRequired(label string) (string, error) {
	return run(promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return errors.New("a value is required")
			}
			return nil
		},
	})
}

// InputWithValidation prompts for text checked by validate.
func InputWithValidation(label string, validate func(string) error) (string, error) {
	return run(promptui.Prompt{
		Label:    label,
		Validate: validate,
	})
}

// InputOptional prompts for text that may stay empty. The label is
// suffixed with "(optional)".
func InputOptional(label string) (string, error) {
	return run(promptui.Prompt{Label: label + " (optional)"})
}

// InputInt prompts for an integer, offering defaultValue.
func InputInt(label string, defaultValue int) (int, error) {
	result, err := run(promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			if _, err := strconv.Atoi(input); err != nil {
				return errors.New("enter a whole number")
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}

	value, _ := strconv.Atoi(result) // Already validated
	return value, nil
}

// InputPort prompts for a TCP port, offering defaultValue.
func InputPort(label string, defaultValue int) (int, error) {
	result, err := run(promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(defaultValue),
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil {
				return errors.New("enter a whole number")
			}
			if port < 1 || port > 65535 {
				return errors.New("port must be between 1 and 65535")
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}

	value, _ := strconv.Atoi(result) // Already validated
	return value, nil
}
