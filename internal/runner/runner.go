// Package runner executes recipe commands through the platform shell.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/teamcutter/huber/internal/domain"
)

// maxOutput bounds how much command output an error carries.
const maxOutput = 4096

type ShellRunner struct {
	shell  []string
	output io.Writer
}

// New returns a runner using sh -c, or powershell on Windows. Command
// output is copied to output when it is not nil.
func New(output io.Writer) *ShellRunner {
	return &ShellRunner{shell: Shell(runtime.GOOS), output: output}
}

// Shell returns the argv prefix that runs a single command line on goos.
func Shell(goos string) []string {
	if goos == "windows" {
		return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command"}
	}
	return []string{"sh", "-c"}
}

// Run executes command in dir with env appended to the current
// environment. A failure is returned as *domain.CommandError.
func (r *ShellRunner) Run(ctx context.Context, command, dir string, env []string) error {
	args := append(append([]string(nil), r.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, r.shell[0], args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var buf bytes.Buffer
	w := io.Writer(&buf)
	if r.output != nil {
		w = io.MultiWriter(&buf, r.output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	out := buf.Bytes()
	if len(out) > maxOutput {
		out = out[len(out)-maxOutput:]
	}

	return &domain.CommandError{
		Command:  command,
		ExitCode: exitCode,
		Output:   string(out),
		Err:      err,
	}
}
