package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("package not found")
	ErrInvalidPattern      = errors.New("invalid search pattern")
	ErrInvalidManifest     = errors.New("invalid manifest")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrSignature           = errors.New("signature verification failed")
	ErrAlreadyRunning      = errors.New("huber is already running")
	ErrNotInstalled        = errors.New("package not installed")
	ErrCommandFailed       = errors.New("command execution failed")
)

type ManifestError struct {
	Name string
	Err  error
}

func (e *ManifestError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid manifest: %v", e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Name, e.Err)
}

func (e *ManifestError) Unwrap() error        { return e.Err }
func (e *ManifestError) Is(target error) bool { return target == ErrInvalidManifest }

type UnsupportedPlatformError struct {
	OS      string
	Arch    string
	Package string
}

func (e *UnsupportedPlatformError) Error() string {
	msg := fmt.Sprintf("unsupported OS %s or ARCH %s", e.OS, e.Arch)
	if e.Package != "" {
		msg += " for " + e.Package
	}
	return msg
}

func (e *UnsupportedPlatformError) Is(target error) bool { return target == ErrUnsupportedPlatform }

// ArtifactUnavailableError records every template that was tried, in order.
type ArtifactUnavailableError struct {
	Package  string
	Attempts []string
	Err      error
}

func (e *ArtifactUnavailableError) Error() string {
	return fmt.Sprintf("no artifact available for %s (tried %s): %v",
		e.Package, strings.Join(e.Attempts, ", "), e.Err)
}

func (e *ArtifactUnavailableError) Unwrap() error        { return e.Err }
func (e *ArtifactUnavailableError) Is(target error) bool { return target == ErrArtifactUnavailable }

type ChecksumMismatchError struct {
	Artifact string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Artifact, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

type SignatureError struct {
	Artifact string
	Err      error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed for %s: %v", e.Artifact, e.Err)
}

func (e *SignatureError) Unwrap() error        { return e.Err }
func (e *SignatureError) Is(target error) bool { return target == ErrSignature }

type AlreadyRunningError struct {
	Path string
	Err  error
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("huber is already running by another process for the exclusive operation (lock %s). Please try after the operation finished", e.Path)
}

func (e *AlreadyRunningError) Unwrap() error        { return e.Err }
func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed (exit %d)", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error        { return e.Err }
func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }
