package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirm asks a yes/no question. Enter accepts the default, "n"
// answers no without an error, Ctrl+C returns ErrAborted.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	def := ""
	if defaultYes {
		hint = "Y/n"
		// promptui only honors an empty answer when the default is y.
		def = "y"
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
		Default:   def,
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		// promptui reports a "no" answer as ErrAbort.
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	if result == "" {
		return defaultYes, nil
	}
	return strings.EqualFold(result, "y"), nil
}

// ConfirmWithForce skips the prompt when force is set.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
