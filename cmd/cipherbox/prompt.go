package main

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Environment variables read instead of prompting, for scripts.
const (
	passwordEnv    = "CIPHERBOX_PASSWORD"
	newPasswordEnv = "CIPHERBOX_NEW_PASSWORD"
)

func promptPassword(prompt, env string) ([]byte, error) {
	if pw, ok := os.LookupEnv(env); ok {
		if pw == "" {
			return nil, userError{msg: env + " is empty"}
		}
		return []byte(pw), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, userError{msg: "stdin is not a terminal; set " + env + " to supply the password"}
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return nil, userError{msg: "password cannot be empty"}
	}
	return pw, nil
}

// promptNewPassword asks twice unless the password comes from env.
func promptNewPassword(prompt, env string) ([]byte, error) {
	pw, err := promptPassword(prompt, env)
	if err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv(env); ok {
		return pw, nil
	}

	confirm, err := promptPassword("Confirm password: ", env)
	if err != nil {
		zeroBytes(pw)
		return nil, err
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(pw, confirm) {
		zeroBytes(pw)
		return nil, userError{msg: "passwords do not match"}
	}
	return pw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
