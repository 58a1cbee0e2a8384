package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch is returned when the confirmation round does not
// match the first entry.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a masked password. Empty input is allowed;
// callers use empty to mean "no password".
func Password(label string) (string, error) {
	return run(promptui.Prompt{
		Label: label,
		Mask:  '*',
	})
}

// PasswordWithValidation prompts for a masked password of at least
// minLength characters.
func PasswordWithValidation(label string, minLength int) (string, error) {
	return run(promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) >= minLength {
				return nil
			}
			if minLength <= 1 {
				return errors.New("password must not be empty")
			}
			return fmt.Errorf("password must be at least %d characters", minLength)
		},
	})
}

// PasswordWithConfirmation prompts for a password twice and returns
// ErrPasswordMismatch if the rounds differ.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	password, err := PasswordWithValidation(label, minLength)
	if err != nil {
		return "", err
	}

	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// NewPassword prompts for a non-empty password with a confirmation
// round. Groups impose no length policy on their passwords.
func NewPassword() (string, error) {
	return PasswordWithConfirmation("Password", "Confirm password", 1)
}
