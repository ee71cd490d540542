// Package generator launches the external video-generation program.
package generator

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"syscall"
)

// Command is one invocation of the generation tool.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is overlaid on the parent environment.
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs a Command to completion and reports its exit code, negative
// for a signal kill. A non-nil error means the process could not be run
// at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec. The child is not bound to ctx:
// cancelling a job's context does not kill a generation in flight.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (ExecRunner) Run(_ context.Context, c Command) (int, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = MergeEnv(os.Environ(), c.Env)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr), nil
	}
	return -1, err
}

// exitCode reports a child killed by a signal as minus the signal number,
// so an OOM kill shows up as -9.
func exitCode(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return exitErr.ExitCode()
}

// MergeEnv appends overlay to base as KEY=VALUE pairs in key order.
// exec keeps the last value for duplicate keys, so overlay wins.
func MergeEnv(base []string, overlay map[string]string) []string {
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}
	return env
}
