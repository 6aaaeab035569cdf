package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var stdin = bufio.NewReader(os.Stdin)

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret returns the value of env when set. Otherwise it prompts on the
// terminal without echo, or reads one line from stdin when stdin is a pipe.
func readSecret(env, prompt string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	if !interactive() {
		return readLine()
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}

// readConfirmation asks for a secret a second time on a terminal. Values
// from the environment or a pipe are taken as already confirmed.
func readConfirmation(env, prompt, first string) (string, error) {
	if os.Getenv(env) != "" || !interactive() {
		return first, nil
	}
	return readSecret(env, prompt)
}

// readPlain prompts for a visible value such as an email address.
func readPlain(prompt string) (string, error) {
	if interactive() {
		fmt.Fprint(os.Stderr, prompt)
	}
	return readLine()
}

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
