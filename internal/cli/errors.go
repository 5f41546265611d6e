package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teamcutter/huber/internal/domain"
)

const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitCanceled = 130
)

// exitCodes is checked in order; the first matching kind wins.
var exitCodes = []struct {
	err  error
	code int
	hint string
}{
	{domain.ErrAlreadyRunning, 3, "another huber process holds the lock; wait for it to finish"},
	{domain.ErrNotFound, 4, "look for available packages with: huber search"},
	{domain.ErrNotInstalled, 5, "see installed packages with: huber list"},
	{domain.ErrUnsupportedPlatform, 6, "see supported platforms with: huber show <name>"},
	{domain.ErrArtifactUnavailable, 7, "check the network and the repository setting"},
	{domain.ErrChecksumMismatch, 8, "the downloaded artifact was discarded; retry or report the manifest"},
	{domain.ErrSignature, 9, "check the package public key in the keyring directory"},
	{domain.ErrCommandFailed, 10, ""},
	{domain.ErrInvalidPattern, 11, "patterns use Go regular expression syntax"},
	{domain.ErrInvalidManifest, 12, "the repository holds a malformed manifest"},
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// batchError reports a multi-package command where some packages
// failed. Each failure was printed as it happened.
type batchError struct {
	verb string
	errs []error
}

func (e *batchError) Error() string {
	return fmt.Sprintf("failed to %s %d package(s)", e.verb, len(e.errs))
}

func (e *batchError) Unwrap() []error { return e.errs }

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitCanceled
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	for _, c := range exitCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ExitFailure
}

func hint(err error) string {
	for _, c := range exitCodes {
		if errors.Is(err, c.err) {
			return c.hint
		}
	}
	return ""
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", red("✗"), err)
	if h := hint(err); h != "" {
		fmt.Fprintf(w, "  %s %s\n", dim("hint:"), h)
	}
}
