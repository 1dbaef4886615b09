package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/Hussein-Mazeh/cipherbox/internal/service"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

// friendly turns known failures into user errors. Authentication failures
// say nothing about which part of the input was wrong.
func friendly(err error) error {
	var uerr userError
	switch {
	case errors.As(err, &uerr):
		return uerr
	case errors.Is(err, krypto.ErrAuthenticationFailed):
		return userError{msg: "decryption failed: wrong password or key, or the data was modified"}
	case errors.Is(err, krypto.ErrMalformedEnvelope):
		return userError{msg: "input is not a valid cipherbox envelope or key"}
	case errors.Is(err, krypto.ErrPayloadTooLarge):
		return userError{msg: "payload is too large for this key; wrap a symmetric key instead"}
	case errors.Is(err, krypto.ErrOperationCancelled):
		return userError{msg: "operation cancelled"}
	case errors.Is(err, krypto.ErrInvalidParameter):
		return userError{msg: err.Error()}
	case service.IsNotFound(err):
		return userError{msg: "record not found"}
	}
	return err
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(friendly(err), &uerr) {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), uerr.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}
