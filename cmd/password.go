package main

import (
	"fmt"
	"os"
	"regexp"

	"golang.org/x/term"

	errs "github.com/zzenonn/volpack/internal/errors"
)

// validPasswordPattern restricts passwords to characters that survive being
// passed on a 7z command line unmodified across shells and platforms.
var validPasswordPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*+=,.\-_\\/()|;: ~<>?"'{}[\]]+$`)

// promptPassword reads the encryption password twice from the terminal
// without echo and validates it.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Choose password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return "", errs.ErrEmptyPassword
	}
	if !validPasswordPattern.Match(password) {
		return "", fmt.Errorf("only passwords matching %s are allowed, to prevent command-line escaping problems", validPasswordPattern)
	}

	fmt.Fprint(os.Stderr, "Verify password: ")
	confirmation, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password confirmation: %w", err)
	}
	if string(password) != string(confirmation) {
		return "", errs.ErrPasswordMismatch
	}
	return string(password), nil
}
