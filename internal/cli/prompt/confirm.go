// Package prompt provides interactive confirmation for destructive umsctl commands.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user presses Ctrl+C.
var ErrAborted = errors.New("aborted")

// Stdin overrides the prompt input. Nil uses the terminal.
var Stdin io.ReadCloser

// Confirm prompts the user for yes/no confirmation.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
		Stdin:     Stdin,
	}

	result, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil && result == "":
		return defaultYes, nil
	case err != nil:
		return false, err
	}

	result = strings.ToLower(result)
	return result == "y" || result == "yes", nil
}

// ConfirmDanger requires the user to type confirmWord to proceed.
func ConfirmDanger(label, confirmWord string) (bool, error) {
	p := promptui.Prompt{
		Label: fmt.Sprintf("%s (type '%s' to confirm)", label, confirmWord),
		Stdin: Stdin,
		Validate: func(input string) error {
			if input != confirmWord {
				return fmt.Errorf("type '%s' to confirm", confirmWord)
			}
			return nil
		},
	}

	result, err := p.Run()
	if errors.Is(err, promptui.ErrInterrupt) {
		return false, ErrAborted
	}
	if err != nil {
		return false, nil
	}
	return result == confirmWord, nil
}

// ConfirmWithForce skips the prompt when force is set.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
